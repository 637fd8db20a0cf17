package mapper

import (
	"testing"

	"github.com/wisbric/corpreg/internal/model"
)

func TestFromKrs_DerivesStatusFromEntries(t *testing.T) {
	k := &model.KrsResponse{
		KrsNumber: "0000123456",
		Name:      "Test Sp. z o.o.",
		LegalForm: "spółka z ograniczoną odpowiedzialnością",
		Entries:   []model.KrsEntry{{Kind: "bankruptcy"}},
	}
	rec, appErr := FromKrs("5260250995", k)
	if appErr != nil {
		t.Fatalf("FromKrs() error = %v", appErr)
	}
	if rec.Status != model.StatusBankruptcy {
		t.Errorf("Status = %v, want UPADŁOŚĆ", rec.Status)
	}
	if rec.IsActive {
		t.Error("IsActive = true, want false for bankruptcy status")
	}
	if rec.EntityType != model.EntityTypeLegal {
		t.Errorf("EntityType = %v, want LEGAL", rec.EntityType)
	}
}

func TestFromKrs_DataWykresleniaTakesPriorityOverEntries(t *testing.T) {
	k := &model.KrsResponse{
		KrsNumber:       "0000123456",
		DataWykreslenia: "2021-01-01",
		Entries:         []model.KrsEntry{{Kind: "bankruptcy"}},
	}
	rec, appErr := FromKrs("5260250995", k)
	if appErr != nil {
		t.Fatalf("FromKrs() error = %v", appErr)
	}
	if rec.Status != model.StatusStruckOff {
		t.Errorf("Status = %v, want WYKREŚLONY when dataWykreslenia present", rec.Status)
	}
}

func TestFromKrs_NipMismatchFails(t *testing.T) {
	k := &model.KrsResponse{KrsNumber: "0000123456"}
	_, appErr := FromKrs("0000000000", k)
	if appErr == nil {
		t.Fatal("FromKrs() error = nil, want DATA_MAPPING_FAILED")
	}
}

func TestFromCeidg_MapsStatusAndLegalForm(t *testing.T) {
	ce := &model.CeidgCompany{
		Nip:    "7122854882",
		Name:   "Jan Kowalski",
		Status: model.CeidgStatusActive,
	}
	rec, appErr := FromCeidg("7122854882", ce)
	if appErr != nil {
		t.Fatalf("FromCeidg() error = %v", appErr)
	}
	if rec.EntityType != model.EntityTypeNatural {
		t.Errorf("EntityType = %v, want NATURAL", rec.EntityType)
	}
	if rec.LegalForm == nil || *rec.LegalForm != "DZIAŁALNOŚĆ_GOSPODARCZA" {
		t.Errorf("LegalForm = %v, want DZIAŁALNOŚĆ_GOSPODARCZA", rec.LegalForm)
	}
	if !rec.IsActive || rec.Status != model.StatusActive {
		t.Errorf("Status/IsActive = %v/%v, want AKTYWNY/true", rec.Status, rec.IsActive)
	}
}

func TestFromCeidg_StatusMapCompleteness(t *testing.T) {
	cases := map[model.CeidgStatus]model.Status{
		model.CeidgStatusActive:               model.StatusActive,
		model.CeidgStatusDeregistered:         model.StatusDeregisteredGus,
		model.CeidgStatusSuspended:            model.StatusSuspended,
		model.CeidgStatusAwaitingStart:        model.StatusInactive,
		model.CeidgStatusExclusivelyAsCompany: model.StatusInactive,
		model.CeidgStatus("SOMETHING_UNKNOWN"): model.StatusInactive,
	}
	for in, want := range cases {
		got := mapCeidgStatus(in)
		if got != want {
			t.Errorf("mapCeidgStatus(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestKrsNumberFromLegalReport_PrefersFirstAlias(t *testing.T) {
	r := &model.GusLegalReport{NumerKRS: "0000111111", NrKRS: "0000222222"}
	if got := KrsNumberFromLegalReport(r); got != "0000111111" {
		t.Errorf("KrsNumberFromLegalReport() = %q, want 0000111111", got)
	}
}

func TestKrsNumberFromLegalReport_FallsBackThroughAliases(t *testing.T) {
	r := &model.GusLegalReport{NrKRS: "0000333333"}
	if got := KrsNumberFromLegalReport(r); got != "0000333333" {
		t.Errorf("KrsNumberFromLegalReport() = %q, want 0000333333", got)
	}
}

func TestFromGusDetail_SoleTraderInactiveWhenEndDatePresent(t *testing.T) {
	sole := &model.GusSoleTraderReport{Regon: "123456785", Name: "Jan Kowalski", EndOfActivityDate: "2022-01-01"}
	rec, appErr := FromGusDetail("7122854882", nil, sole, "123456785", "")
	if appErr != nil {
		t.Fatalf("FromGusDetail() error = %v", appErr)
	}
	if rec.Status != model.StatusDeregisteredGus || rec.IsActive {
		t.Errorf("Status/IsActive = %v/%v, want WYREJESTROWANY/false", rec.Status, rec.IsActive)
	}
	if rec.RegistrySignature != "gus-regon:123456785" {
		t.Errorf("RegistrySignature = %q, want gus-regon prefix without session id", rec.RegistrySignature)
	}
}

func TestFromGusDetail_UsesSessionSignatureWhenAvailable(t *testing.T) {
	sole := &model.GusSoleTraderReport{Regon: "123456785", Name: "Jan Kowalski"}
	rec, appErr := FromGusDetail("7122854882", nil, sole, "123456785", "sess-abc")
	if appErr != nil {
		t.Fatalf("FromGusDetail() error = %v", appErr)
	}
	if rec.RegistrySignature != "gus-session:sess-abc" {
		t.Errorf("RegistrySignature = %q, want gus-session:sess-abc", rec.RegistrySignature)
	}
}

func TestFromClassificationInactive_ProducesStruckOffRecord(t *testing.T) {
	c := &model.ClassificationResult{
		Regon:             "123456785",
		EntityName:        "Defunct Co",
		EndOfActivityDate: "2019-05-01",
		AddressFragments:  map[string]string{},
	}
	rec, appErr := FromClassificationInactive("5260250995", c)
	if appErr != nil {
		t.Fatalf("FromClassificationInactive() error = %v", appErr)
	}
	if rec.Status != model.StatusStruckOff || rec.IsActive {
		t.Errorf("Status/IsActive = %v/%v, want WYKREŚLONY/false", rec.Status, rec.IsActive)
	}
	if rec.LegalForm != nil {
		t.Error("LegalForm should be nil for classification-only inactive mapping")
	}
	if rec.DataSource != model.DataSourceGUS {
		t.Errorf("DataSource = %v, want GUS", rec.DataSource)
	}
}
