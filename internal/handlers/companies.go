// Package handlers is the HTTP façade (C7): it decodes and validates the
// request, resolves the correlation id, builds the per-request
// OrchestrationContext with its deadline, drives the orchestration state
// machine, and renders either the UnifiedCompanyRecord or the canonical
// error response.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wisbric/corpreg/internal/alerting"
	"github.com/wisbric/corpreg/internal/apperr"
	"github.com/wisbric/corpreg/internal/httpserver"
	"github.com/wisbric/corpreg/internal/model"
	"github.com/wisbric/corpreg/internal/nip"
	"github.com/wisbric/corpreg/internal/orchestrator"
)

// CompanyRequest is the POST /api/companies request body.
type CompanyRequest struct {
	Nip string `json:"nip" validate:"required"`
}

// CompanyHandler serves POST /api/companies.
type CompanyHandler struct {
	Machine      *orchestrator.Machine
	Alerts       *alerting.Notifier
	RequestTimeout time.Duration
}

func (h *CompanyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := apperr.CorrelationIDFromRequest(r)

	var req CompanyRequest
	decodeErr, validationErrs := httpserver.DecodeAndValidate(r, &req)
	if decodeErr != nil {
		apperr.WriteResponse(w, apperr.InvalidRequestFormat(decodeErr.Error()), correlationID)
		return
	}
	if len(validationErrs) > 0 {
		apperr.WriteResponse(w, apperr.MissingRequiredFields(validationErrs), correlationID)
		return
	}

	strippedNip, ok := nip.Validate(req.Nip)
	if !ok {
		apperr.WriteResponse(w, apperr.InvalidNIPFormat(), correlationID)
		return
	}

	oc := model.NewOrchestrationContext(strippedNip, correlationID, h.RequestTimeout)

	ctx, cancel := context.WithDeadline(r.Context(), oc.Deadline)
	defer cancel()

	result := h.Machine.Run(ctx, oc)

	if result.Err != nil {
		if h.Alerts != nil {
			h.Alerts.NotifyServiceUnavailable(result.Err, correlationID)
		}
		apperr.WriteResponse(w, result.Err, correlationID)
		return
	}

	httpserver.Respond(w, http.StatusOK, result.Record)
}
