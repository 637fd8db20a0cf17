package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wisbric/corpreg/internal/apperr"
	"github.com/wisbric/corpreg/internal/model"
	"github.com/wisbric/corpreg/internal/retry"
	"github.com/wisbric/corpreg/internal/typederror"
)

type fakeGus struct {
	classification    *model.ClassificationResult
	classificationErr *typederror.Error
	legal             *model.GusLegalReport
	sole              *model.GusSoleTraderReport
	detailErr         *typederror.Error
	sessionID         string
}

func (f *fakeGus) ClassifyByNip(ctx context.Context, nip string) (*model.ClassificationResult, *typederror.Error) {
	return f.classification, f.classificationErr
}

func (f *fakeGus) DetailedReport(ctx context.Context, regon string, silosID model.Silos) (*model.GusLegalReport, *model.GusSoleTraderReport, *typederror.Error) {
	return f.legal, f.sole, f.detailErr
}

func (f *fakeGus) SessionID() string { return f.sessionID }

type fakeKrs struct {
	byRegistry map[model.KrsRegistry]*model.KrsResponse
	errByReg   map[model.KrsRegistry]*typederror.Error
}

func (f *fakeKrs) Fetch(ctx context.Context, krsNumber string, registry model.KrsRegistry) (*model.KrsResponse, *typederror.Error) {
	if err, ok := f.errByReg[registry]; ok && err != nil {
		return nil, err
	}
	return f.byRegistry[registry], nil
}

type fakeCeidg struct {
	company *model.CeidgCompany
	err     *typederror.Error
}

func (f *fakeCeidg) FetchByNip(ctx context.Context, nip string) (*model.CeidgCompany, *typederror.Error) {
	return f.company, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRetryConfig() RetryConfig {
	fast := retry.Config{MaxRetries: 1, InitialDelayMs: 1}
	return RetryConfig{GUS: fast, KRS: fast, CEIDG: fast}
}

func newCtx(nip string) *model.OrchestrationContext {
	return model.NewOrchestrationContext(nip, "corr-1", time.Second)
}

func TestMachine_LegalEntityViaKrsP(t *testing.T) {
	m := &Machine{
		Gus: &fakeGus{
			classification: &model.ClassificationResult{Regon: "123456785", SilosID: model.SilosLegalEntity},
			legal:          &model.GusLegalReport{Krs: "0000123456"},
		},
		Krs: &fakeKrs{byRegistry: map[model.KrsRegistry]*model.KrsResponse{
			model.KrsRegistryP: {KrsNumber: "0000123456", Name: "Test SA"},
		}},
		Retry:  testRetryConfig(),
		Logger: testLogger(),
	}

	res := m.Run(context.Background(), newCtx("5260250995"))
	if res.Err != nil {
		t.Fatalf("Run() error = %v", res.Err)
	}
	if res.Record.DataSource != model.DataSourceKRS {
		t.Errorf("DataSource = %v, want KRS", res.Record.DataSource)
	}
	if res.Record.EntityType != model.EntityTypeLegal {
		t.Errorf("EntityType = %v, want LEGAL", res.Record.EntityType)
	}
}

func TestMachine_SoleTraderViaCeidg(t *testing.T) {
	m := &Machine{
		Gus: &fakeGus{
			classification: &model.ClassificationResult{Regon: "123456785", SilosID: model.SilosSoleTrader},
		},
		Ceidg: &fakeCeidg{company: &model.CeidgCompany{Name: "Jan Kowalski", Status: model.CeidgStatusActive}},
		Retry: testRetryConfig(), Logger: testLogger(),
	}

	res := m.Run(context.Background(), newCtx("7122854882"))
	if res.Err != nil {
		t.Fatalf("Run() error = %v", res.Err)
	}
	if res.Record.DataSource != model.DataSourceCEIDG || res.Record.EntityType != model.EntityTypeNatural {
		t.Errorf("got dataSource=%v entityType=%v, want CEIDG/NATURAL", res.Record.DataSource, res.Record.EntityType)
	}
	if res.Record.LegalForm == nil || *res.Record.LegalForm != "DZIAŁALNOŚĆ_GOSPODARCZA" {
		t.Error("expected legalForm DZIAŁALNOŚĆ_GOSPODARCZA")
	}
}

func TestMachine_EntityNotFound(t *testing.T) {
	m := &Machine{
		Gus: &fakeGus{classificationErr: typederror.New(typederror.KindNotFound, typederror.SourceGUS, "nope")},
		Retry: testRetryConfig(), Logger: testLogger(),
	}

	res := m.Run(context.Background(), newCtx("0000000000"))
	if res.Record != nil {
		t.Fatal("Run() returned a record, want ENTITY_NOT_FOUND error")
	}
	if res.Err.Code != apperr.CodeEntityNotFound {
		t.Errorf("Code = %v, want ENTITY_NOT_FOUND", res.Err.Code)
	}
}

func TestMachine_Deregistered(t *testing.T) {
	m := &Machine{
		Gus: &fakeGus{classification: &model.ClassificationResult{Regon: "1", SilosID: model.SilosDeregistered}},
		Retry: testRetryConfig(), Logger: testLogger(),
	}

	res := m.Run(context.Background(), newCtx("1112223334"))
	if res.Err.Code != apperr.CodeEntityDeregistered {
		t.Errorf("Code = %v, want ENTITY_DEREGISTERED", res.Err.Code)
	}
}

func TestMachine_KrsPNotFoundFallsBackToS(t *testing.T) {
	m := &Machine{
		Gus: &fakeGus{
			classification: &model.ClassificationResult{Regon: "123456785", SilosID: model.SilosLegalEntity},
			legal:          &model.GusLegalReport{Krs: "0000999999"},
		},
		Krs: &fakeKrs{
			errByReg:   map[model.KrsRegistry]*typederror.Error{model.KrsRegistryP: typederror.New(typederror.KindNotFound, typederror.SourceKRS, "not in P")},
			byRegistry: map[model.KrsRegistry]*model.KrsResponse{model.KrsRegistryS: {KrsNumber: "0000999999", Name: "Fundacja X", Entries: []model.KrsEntry{{Kind: "bankruptcy"}}}},
		},
		Retry: testRetryConfig(), Logger: testLogger(),
	}

	res := m.Run(context.Background(), newCtx("5260250995"))
	if res.Err != nil {
		t.Fatalf("Run() error = %v", res.Err)
	}
	if res.Record.Status != model.StatusBankruptcy {
		t.Errorf("Status = %v, want UPADŁOŚĆ", res.Record.Status)
	}
}

func TestMachine_GusServiceUnavailableAfterRetriesExhausted(t *testing.T) {
	m := &Machine{
		Gus: &fakeGus{classificationErr: typederror.New(typederror.KindServerError, typederror.SourceGUS, "down")},
		Retry: testRetryConfig(), Logger: testLogger(),
	}

	res := m.Run(context.Background(), newCtx("5260250995"))
	if res.Err.Code != apperr.CodeGUSServiceUnavailable {
		t.Errorf("Code = %v, want GUS_SERVICE_UNAVAILABLE", res.Err.Code)
	}
}

func TestMachine_TimeoutWhenDeadlineAlreadyPassed(t *testing.T) {
	m := &Machine{
		Gus:   &fakeGus{classification: &model.ClassificationResult{Regon: "1", SilosID: model.SilosAgriculture}},
		Retry: testRetryConfig(), Logger: testLogger(),
	}

	oc := model.NewOrchestrationContext("5260250995", "corr-2", -time.Second)
	res := m.Run(context.Background(), oc)
	if res.Err.Code != apperr.CodeTimeoutError {
		t.Errorf("Code = %v, want TIMEOUT_ERROR", res.Err.Code)
	}
}

func TestMachine_CeidgFailureFallsBackToGus(t *testing.T) {
	m := &Machine{
		Gus: &fakeGus{
			classification: &model.ClassificationResult{Regon: "123456785", SilosID: model.SilosSoleTrader},
			sole:           &model.GusSoleTraderReport{Regon: "123456785", Name: "Fallback Name"},
		},
		Ceidg: &fakeCeidg{err: typederror.New(typederror.KindNotFound, typederror.SourceCEIDG, "not in ceidg")},
		Retry: testRetryConfig(), Logger: testLogger(),
	}

	res := m.Run(context.Background(), newCtx("7122854882"))
	if res.Err != nil {
		t.Fatalf("Run() error = %v", res.Err)
	}
	if res.Record.DataSource != model.DataSourceGUS {
		t.Errorf("DataSource = %v, want GUS (fallback)", res.Record.DataSource)
	}
}

func TestMachine_AtMostOneOfKrsOrCeidgSetOnFinalContext(t *testing.T) {
	oc := newCtx("5260250995")
	m := &Machine{
		Gus: &fakeGus{
			classification: &model.ClassificationResult{Regon: "123456785", SilosID: model.SilosLegalEntity},
			legal:          &model.GusLegalReport{Krs: "0000123456"},
		},
		Krs: &fakeKrs{byRegistry: map[model.KrsRegistry]*model.KrsResponse{
			model.KrsRegistryP: {KrsNumber: "0000123456", Name: "Test SA"},
		}},
		Retry: testRetryConfig(), Logger: testLogger(),
	}
	m.Run(context.Background(), oc)
	if oc.KrsData != nil && oc.CeidgData != nil {
		t.Fatal("both krsData and ceidgData set on the final context")
	}
}
