package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wisbric/corpreg/internal/apperr"
	"github.com/wisbric/corpreg/internal/model"
	"github.com/wisbric/corpreg/internal/orchestrator"
	"github.com/wisbric/corpreg/internal/retry"
	"github.com/wisbric/corpreg/internal/typederror"
)

type fakeGus struct {
	classification *model.ClassificationResult
	err            *typederror.Error
}

func (f *fakeGus) ClassifyByNip(ctx context.Context, n string) (*model.ClassificationResult, *typederror.Error) {
	return f.classification, f.err
}
func (f *fakeGus) DetailedReport(ctx context.Context, regon string, silosID model.Silos) (*model.GusLegalReport, *model.GusSoleTraderReport, *typederror.Error) {
	return nil, nil, typederror.New(typederror.KindOther, typederror.SourceGUS, "not configured")
}
func (f *fakeGus) SessionID() string { return "" }

func newMachine(classification *model.ClassificationResult, err *typederror.Error) *orchestrator.Machine {
	fast := retry.Config{MaxRetries: 0, InitialDelayMs: 1}
	return &orchestrator.Machine{
		Gus:    &fakeGus{classification: classification, err: err},
		Retry:  orchestrator.RetryConfig{GUS: fast, KRS: fast, CEIDG: fast},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func postCompanies(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/companies", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCompanyHandler_InvalidNip(t *testing.T) {
	h := &CompanyHandler{Machine: newMachine(nil, nil), RequestTimeout: time.Second}
	rec := postCompanies(t, h, `{"nip":"123"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp apperr.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ErrorCode != string(apperr.CodeInvalidNIPFormat) {
		t.Errorf("errorCode = %q, want INVALID_NIP_FORMAT", resp.ErrorCode)
	}
}

func TestCompanyHandler_MissingField(t *testing.T) {
	h := &CompanyHandler{Machine: newMachine(nil, nil), RequestTimeout: time.Second}
	rec := postCompanies(t, h, `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCompanyHandler_MalformedBody(t *testing.T) {
	h := &CompanyHandler{Machine: newMachine(nil, nil), RequestTimeout: time.Second}
	rec := postCompanies(t, h, `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCompanyHandler_DeregisteredEntity(t *testing.T) {
	h := &CompanyHandler{
		Machine: newMachine(&model.ClassificationResult{
			Regon:             "123456785",
			SilosID:           model.SilosDeregistered,
			EndOfActivityDate: "",
		}, nil),
		RequestTimeout: time.Second,
	}
	// silosId 4 is always a terminal failure regardless of endOfActivityDate.
	rec := postCompanies(t, h, `{"nip":"5260250995"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (deregistered)", rec.Code)
	}
	var resp apperr.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.ErrorCode != string(apperr.CodeEntityDeregistered) {
		t.Errorf("errorCode = %q, want ENTITY_DEREGISTERED", resp.ErrorCode)
	}
	if resp.CorrelationID == "" {
		t.Error("expected a generated correlation id")
	}
}

func TestCompanyHandler_EchoesInboundCorrelationID(t *testing.T) {
	h := &CompanyHandler{Machine: newMachine(nil, nil), RequestTimeout: time.Second}
	req := httptest.NewRequest(http.MethodPost, "/api/companies", bytes.NewBufferString(`{"nip":"123"}`))
	req.Header.Set("x-correlation-id", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apperr.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.CorrelationID != "abc-123" {
		t.Errorf("correlationId = %q, want abc-123", resp.CorrelationID)
	}
}
