// Package orchestrator drives one request through GUS classification,
// registry routing, retry-wrapped upstream fetches, and unified mapping —
// a deterministic, single-threaded state machine bounded by the request's
// total deadline.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/wisbric/corpreg/internal/apperr"
	"github.com/wisbric/corpreg/internal/mapper"
	"github.com/wisbric/corpreg/internal/model"
	"github.com/wisbric/corpreg/internal/retry"
	"github.com/wisbric/corpreg/internal/typederror"
)

// state names the machine's discrete steps. A plain string enum, matching
// the corpus's own state-machine idiom, rather than a dynamic dictionary of
// actions and guards.
type state string

const (
	stateFetchingGusClassification   state = "fetchingGusClassification"
	stateDecidingNextStep            state = "decidingNextStep"
	stateFetchingGusFullReportForKrs state = "fetchingGusFullReportForKrs"
	stateFetchingKrsFromP            state = "fetchingKrsFromP"
	stateFetchingKrsFromS            state = "fetchingKrsFromS"
	stateFetchingCeidgData           state = "fetchingCeidgData"
	stateFetchingGusDetailedFallback state = "fetchingGusDetailedFallback"
	stateFetchingGusGenericData      state = "fetchingGusGenericData"
	stateMappingInactiveCompany      state = "mappingInactiveCompany"
	stateMappingToUnifiedFormat      state = "mappingToUnifiedFormat"
	stateSuccess                     state = "success"
	stateEntityNotFoundFailure       state = "entityNotFoundFailure"
	stateDeregisteredFailure         state = "deregisteredFailure"
	stateSystemFaultFailure          state = "systemFaultFailure"
	stateMappingFailure              state = "mappingFailure"
	stateTimeoutFailure              state = "timeoutFailure"
)

func (s state) terminal() bool {
	switch s {
	case stateSuccess, stateEntityNotFoundFailure, stateDeregisteredFailure,
		stateSystemFaultFailure, stateMappingFailure, stateTimeoutFailure:
		return true
	default:
		return false
	}
}

// GusClient is the subset of gusclient.Client the machine depends on.
type GusClient interface {
	ClassifyByNip(ctx context.Context, nip string) (*model.ClassificationResult, *typederror.Error)
	DetailedReport(ctx context.Context, regon string, silosID model.Silos) (*model.GusLegalReport, *model.GusSoleTraderReport, *typederror.Error)
	SessionID() string
}

// KrsClient is the subset of krsclient.Client the machine depends on.
type KrsClient interface {
	Fetch(ctx context.Context, krsNumber string, registry model.KrsRegistry) (*model.KrsResponse, *typederror.Error)
}

// CeidgClient is the subset of ceidgclient.Client the machine depends on.
type CeidgClient interface {
	FetchByNip(ctx context.Context, nip string) (*model.CeidgCompany, *typederror.Error)
}

// RetryConfig bundles the per-service retry parameters read from config.
type RetryConfig struct {
	GUS   retry.Config
	KRS   retry.Config
	CEIDG retry.Config
}

// Machine wires together the upstream clients, retry configuration, and
// logger needed to drive one request.
type Machine struct {
	Gus    GusClient
	Krs    KrsClient
	Ceidg  CeidgClient
	Retry  RetryConfig
	Logger *slog.Logger
}

// Result is the machine's terminal outcome: exactly one of Record or Err is
// set.
type Result struct {
	Record *model.UnifiedCompanyRecord
	Err    *apperr.Error
}

// Run drives ctx's OrchestrationContext through the machine to a terminal
// state.
func (m *Machine) Run(ctx context.Context, oc *model.OrchestrationContext) Result {
	cur := stateFetchingGusClassification

	for !cur.terminal() {
		if time.Now().After(oc.Deadline) {
			return m.finish(stateTimeoutFailure, oc)
		}

		select {
		case <-ctx.Done():
			return m.finish(stateTimeoutFailure, oc)
		default:
		}

		m.Logger.Debug("orchestrator transition", "correlation_id", oc.CorrelationID, "state", string(cur))
		cur = m.step(ctx, cur, oc)
	}

	return m.finish(cur, oc)
}

func (m *Machine) step(ctx context.Context, cur state, oc *model.OrchestrationContext) state {
	switch cur {
	case stateFetchingGusClassification:
		return m.fetchingGusClassification(ctx, oc)
	case stateDecidingNextStep:
		return m.decidingNextStep(oc)
	case stateFetchingGusFullReportForKrs:
		return m.fetchingGusFullReportForKrs(ctx, oc)
	case stateFetchingKrsFromP:
		return m.fetchingKrs(ctx, oc, model.KrsRegistryP)
	case stateFetchingKrsFromS:
		return m.fetchingKrs(ctx, oc, model.KrsRegistryS)
	case stateFetchingCeidgData:
		return m.fetchingCeidgData(ctx, oc)
	case stateFetchingGusDetailedFallback, stateFetchingGusGenericData:
		return m.fetchingGusDetail(ctx, oc)
	case stateMappingInactiveCompany:
		return m.mappingInactiveCompany(oc)
	case stateMappingToUnifiedFormat:
		return m.mappingToUnifiedFormat(oc)
	default:
		return stateSystemFaultFailure
	}
}

func (m *Machine) fetchingGusClassification(ctx context.Context, oc *model.OrchestrationContext) state {
	result, tErr := doRetry(ctx, m.Retry.GUS, retry.GusStrategy{}, oc, "GUS", func(ctx context.Context) (any, *typederror.Error) {
		return m.Gus.ClassifyByNip(ctx, oc.Nip)
	})
	if tErr != nil {
		oc.LastError = tErr
		if tErr.Kind == typederror.KindNotFound {
			return stateEntityNotFoundFailure
		}
		return stateSystemFaultFailure
	}
	oc.Classification = result.(*model.ClassificationResult)
	return stateDecidingNextStep
}

func (m *Machine) decidingNextStep(oc *model.OrchestrationContext) state {
	c := oc.Classification
	if c.Inactive() {
		return stateMappingInactiveCompany
	}
	switch c.SilosID {
	case model.SilosSoleTrader:
		return stateFetchingCeidgData
	case model.SilosAgriculture, model.SilosProfessional:
		return stateFetchingGusGenericData
	case model.SilosDeregistered:
		return stateDeregisteredFailure
	case model.SilosLegalEntity:
		return stateFetchingGusFullReportForKrs
	default:
		return stateSystemFaultFailure
	}
}

func (m *Machine) fetchingGusFullReportForKrs(ctx context.Context, oc *model.OrchestrationContext) state {
	result, tErr := doRetry(ctx, m.Retry.GUS, retry.GusStrategy{}, oc, "GUS", func(ctx context.Context) (any, *typederror.Error) {
		legal, _, tErr := m.Gus.DetailedReport(ctx, oc.Classification.Regon, model.SilosLegalEntity)
		if tErr != nil {
			return nil, tErr
		}
		return legal, nil
	})
	if tErr != nil {
		oc.LastError = tErr
		return stateSystemFaultFailure
	}
	oc.GusLegalData = result.(*model.GusLegalReport)

	oc.KrsNumber = mapper.KrsNumberFromLegalReport(oc.GusLegalData)
	if oc.KrsNumber == "" {
		return stateMappingToUnifiedFormat
	}
	return stateFetchingKrsFromP
}

func (m *Machine) fetchingKrs(ctx context.Context, oc *model.OrchestrationContext, registry model.KrsRegistry) state {
	result, tErr := doRetry(ctx, m.Retry.KRS, retry.KrsStrategy{}, oc, "KRS", func(ctx context.Context) (any, *typederror.Error) {
		return m.Krs.Fetch(ctx, oc.KrsNumber, registry)
	})
	if tErr == nil {
		oc.KrsData = result.(*model.KrsResponse)
		return stateMappingToUnifiedFormat
	}

	oc.LastError = tErr
	if registry == model.KrsRegistryP && tErr.Kind == typederror.KindNotFound {
		return stateFetchingKrsFromS
	}
	// Any other KRS failure (including S's NotFound) degrades to the
	// earlier GUS detail rather than failing the whole request.
	return stateMappingToUnifiedFormat
}

func (m *Machine) fetchingCeidgData(ctx context.Context, oc *model.OrchestrationContext) state {
	result, tErr := doRetry(ctx, m.Retry.CEIDG, retry.CeidgStrategy{}, oc, "CEIDG", func(ctx context.Context) (any, *typederror.Error) {
		return m.Ceidg.FetchByNip(ctx, oc.Nip)
	})
	if tErr != nil {
		oc.LastError = tErr
		return stateFetchingGusDetailedFallback
	}
	oc.CeidgData = result.(*model.CeidgCompany)
	return stateMappingToUnifiedFormat
}

func (m *Machine) fetchingGusDetail(ctx context.Context, oc *model.OrchestrationContext) state {
	result, tErr := doRetry(ctx, m.Retry.GUS, retry.GusStrategy{}, oc, "GUS", func(ctx context.Context) (any, *typederror.Error) {
		legal, sole, tErr := m.Gus.DetailedReport(ctx, oc.Classification.Regon, oc.Classification.SilosID)
		if tErr != nil {
			return nil, tErr
		}
		if legal != nil {
			return legal, nil
		}
		return sole, nil
	})
	if tErr != nil {
		oc.LastError = tErr
		return stateSystemFaultFailure
	}
	switch v := result.(type) {
	case *model.GusLegalReport:
		oc.GusLegalData = v
	case *model.GusSoleTraderReport:
		oc.GusSoleData = v
	}
	return stateMappingToUnifiedFormat
}

func (m *Machine) mappingInactiveCompany(oc *model.OrchestrationContext) state {
	rec, appErr := mapper.FromClassificationInactive(oc.Nip, oc.Classification)
	if appErr != nil {
		oc.LastError = appErr
		return stateMappingFailure
	}
	oc.FinalRecord = rec
	return stateSuccess
}

// mappingToUnifiedFormat applies the mapper's strict source-priority rule:
// CEIDG, then KRS, then GUS — never merged.
func (m *Machine) mappingToUnifiedFormat(oc *model.OrchestrationContext) state {
	var rec *model.UnifiedCompanyRecord
	var appErr *apperr.Error

	switch {
	case oc.CeidgData != nil:
		rec, appErr = mapper.FromCeidg(oc.Nip, oc.CeidgData)
	case oc.KrsData != nil:
		rec, appErr = mapper.FromKrs(oc.Nip, oc.KrsData)
	case oc.GusLegalData != nil || oc.GusSoleData != nil:
		rec, appErr = mapper.FromGusDetail(oc.Nip, oc.GusLegalData, oc.GusSoleData, oc.Classification.Regon, m.Gus.SessionID())
	default:
		appErr = apperr.New(apperr.CodeDataMappingFailed, apperr.SourceInternal, "no upstream data available to map")
	}

	if appErr != nil {
		oc.LastError = appErr
		return stateMappingFailure
	}
	oc.FinalRecord = rec
	return stateSuccess
}

// doRetry wraps an upstream call with the retry engine and records the
// attempt count into the context's retry counters for observability.
func doRetry(ctx context.Context, cfg retry.Config, strategy retry.Strategy, oc *model.OrchestrationContext, service string, op retry.Op) (any, *typederror.Error) {
	cfg.CorrelationID = oc.CorrelationID
	return retry.Do(ctx, cfg, strategy, func(ctx context.Context) (any, *typederror.Error) {
		oc.RetryCounters[service]++
		return op(ctx)
	})
}

func (m *Machine) finish(final state, oc *model.OrchestrationContext) Result {
	switch final {
	case stateSuccess:
		return Result{Record: oc.FinalRecord}
	case stateEntityNotFoundFailure:
		return Result{Err: apperr.New(apperr.CodeEntityNotFound, apperr.SourceGUS, "entity not found for the given nip")}
	case stateDeregisteredFailure:
		return Result{Err: apperr.New(apperr.CodeEntityDeregistered, apperr.SourceGUS, "entity is deregistered")}
	case stateTimeoutFailure:
		return Result{Err: apperr.New(apperr.CodeTimeoutError, apperr.SourceInternal, "request deadline exceeded")}
	case stateMappingFailure:
		if ae, ok := oc.LastError.(*apperr.Error); ok {
			return Result{Err: ae}
		}
		return Result{Err: apperr.New(apperr.CodeDataMappingFailed, apperr.SourceInternal, "mapping failed")}
	case stateSystemFaultFailure:
		return Result{Err: m.classifyTerminalUpstreamFailure(oc)}
	default:
		return Result{Err: apperr.New(apperr.CodeInternalServerError, apperr.SourceInternal, "unreachable state reached")}
	}
}

// classifyTerminalUpstreamFailure maps the context's last TypedError onto
// the *_SERVICE_UNAVAILABLE taxonomy by source.
func (m *Machine) classifyTerminalUpstreamFailure(oc *model.OrchestrationContext) *apperr.Error {
	tErr, ok := oc.LastError.(*typederror.Error)
	if !ok {
		return apperr.New(apperr.CodeInternalServerError, apperr.SourceInternal, "unclassified terminal failure")
	}

	switch tErr.Source {
	case typederror.SourceGUS:
		return apperr.New(apperr.CodeGUSServiceUnavailable, apperr.SourceGUS, tErr.Message)
	case typederror.SourceKRS:
		return apperr.New(apperr.CodeKRSServiceUnavailable, apperr.SourceKRS, tErr.Message)
	case typederror.SourceCEIDG:
		return apperr.New(apperr.CodeCEIDGServiceUnavailable, apperr.SourceCEIDG, tErr.Message)
	default:
		return apperr.New(apperr.CodeInternalServerError, apperr.SourceInternal, tErr.Message)
	}
}
