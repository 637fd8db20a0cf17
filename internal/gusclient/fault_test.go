package gusclient

import (
	"testing"

	"github.com/wisbric/corpreg/internal/model"
	"github.com/wisbric/corpreg/internal/typederror"
)

func TestExtractFaultCode(t *testing.T) {
	cases := map[string]string{
		"Sesja nieprawidlowa. kod=2":        "2",
		"Sesja wygasla, kod=7, retry":       "7",
		"kod=99;more":                       "99",
		"no code embedded here":             "",
		"kod=":                              "",
	}
	for in, want := range cases {
		if got := extractFaultCode(in); got != want {
			t.Errorf("extractFaultCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClassifyFault_SessionExpiredCodes(t *testing.T) {
	for _, code := range []string{"2", "7"} {
		f := &soapFault{FaultString: "błąd sesji, kod=" + code}
		err := classifyFault(f)
		if err.Kind != typederror.KindSessionExpired {
			t.Errorf("classifyFault(kod=%s) kind = %v, want SessionExpired", code, err.Kind)
		}
	}
}

func TestClassifyFault_OtherCodeIsNotSessionExpired(t *testing.T) {
	f := &soapFault{FaultString: "inny błąd, kod=13"}
	err := classifyFault(f)
	if err.Kind == typederror.KindSessionExpired {
		t.Error("classifyFault(kod=13) kind = SessionExpired, want something else")
	}
}

func TestReportNameFor(t *testing.T) {
	if got := reportNameFor(model.SilosLegalEntity); got != "BIR11OsPrawna" {
		t.Errorf("reportNameFor(legal) = %q", got)
	}
	if got := reportNameFor(model.SilosAgriculture); got != "BIR11OsFizycznaDzialalnoscCeidg" {
		t.Errorf("reportNameFor(agriculture) = %q", got)
	}
}
