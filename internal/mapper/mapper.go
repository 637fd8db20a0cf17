// Package mapper projects whichever upstream source answered a request
// (GUS classification/detail, KRS, or CEIDG) onto the single
// UnifiedCompanyRecord shape, applying the source-priority and
// normalization rules: no merging across registries, each source
// authoritative when selected.
package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/wisbric/corpreg/internal/apperr"
	"github.com/wisbric/corpreg/internal/model"
)

// KrsNumberFromLegalReport checks the GUS legal-report fields that may carry
// the KRS number, in the order Krs, NumerKRS, NrKRS; the first non-empty one
// wins.
func KrsNumberFromLegalReport(r *model.GusLegalReport) string {
	for _, v := range []string{r.Krs, r.NumerKRS, r.NrKRS} {
		if v != "" {
			return v
		}
	}
	return ""
}

// FromClassificationInactive builds the minimal record for an entity that
// classification alone already reports as inactive.
func FromClassificationInactive(nip string, c *model.ClassificationResult) (*model.UnifiedCompanyRecord, *apperr.Error) {
	frag := c.AddressFragments
	rec := &model.UnifiedCompanyRecord{
		Nip:    nip,
		Name:   c.EntityName,
		Status: model.StatusStruckOff,
		IsActive: false,
		Address: model.Address{
			Province:   frag["province"],
			District:   frag["district"],
			Commune:    frag["commune"],
			City:       frag["city"],
			PostalCode: FormatPostalCode(frag["postalCode"]),
		},
		Regon:             ptr(c.Regon),
		LegalForm:         nil,
		EntityType:        model.EntityTypeLegal,
		DataSource:        model.DataSourceGUS,
		UpdatedAt:         time.Now().UTC(),
		RegistrySignature: "gus-regon:" + c.Regon,
	}
	rec.ActivityEndDate = optionalPtr(NormalizeDate(c.EndOfActivityDate))

	return validate(nip, rec)
}

// FromKrs builds a record from a KRS response — the authoritative source
// for silosId "6" legal entities.
func FromKrs(nip string, k *model.KrsResponse) (*model.UnifiedCompanyRecord, *apperr.Error) {
	rec := &model.UnifiedCompanyRecord{
		Nip:    nip,
		Name:   k.Name,
		Status: deriveKrsStatus(k),
		Address: model.Address{
			Province:        k.Address.Province,
			District:        k.Address.District,
			Commune:         k.Address.Commune,
			City:            k.Address.City,
			PostalCode:      FormatPostalCode(k.Address.PostalCode),
			Street:          optionalPtr(k.Address.Street),
			BuildingNumber:  optionalPtr(k.Address.BuildingNumber),
			ApartmentNumber: optionalPtr(k.Address.ApartmentNumber),
		},
		Krs:               ptr(k.KrsNumber),
		LegalForm:         ptr(NormalizeLegalFormKRS(k.LegalForm)),
		EntityType:        model.EntityTypeLegal,
		DataSource:        model.DataSourceKRS,
		UpdatedAt:         time.Now().UTC(),
		ActivityStartDate: optionalPtr(NormalizeDate(k.RegistrationDate)),
		RegistrySignature: "krs:" + k.StateAsOfDate,
	}
	rec.IsActive = rec.Status == model.StatusActive

	return validate(nip, rec)
}

// FromCeidg builds a record from a CEIDG response — the authoritative
// source for silosId "1" sole traders.
func FromCeidg(nip string, ce *model.CeidgCompany) (*model.UnifiedCompanyRecord, *apperr.Error) {
	status := mapCeidgStatus(ce.Status)
	rec := &model.UnifiedCompanyRecord{
		Nip:    nip,
		Name:   fullName(ce),
		Status: status,
		Address: model.Address{
			Province:        ce.Address.Province,
			District:        ce.Address.District,
			Commune:         ce.Address.Commune,
			City:            ce.Address.City,
			PostalCode:      FormatPostalCode(ce.Address.PostalCode),
			Street:          optionalPtr(ce.Address.Street),
			BuildingNumber:  optionalPtr(ce.Address.BuildingNumber),
			ApartmentNumber: optionalPtr(ce.Address.ApartmentNumber),
		},
		Regon:             optionalPtr(ce.Regon),
		LegalForm:         ptr("DZIAŁALNOŚĆ_GOSPODARCZA"),
		EntityType:        model.EntityTypeNatural,
		DataSource:        model.DataSourceCEIDG,
		UpdatedAt:         time.Now().UTC(),
		ActivityStartDate: optionalPtr(NormalizeDate(ce.ActivityStartDate)),
		ActivityEndDate:   optionalPtr(NormalizeDate(ce.ActivityEndDate)),
		RegistrySignature: "ceidg:" + ce.RecordID,
	}
	rec.IsActive = rec.Status == model.StatusActive

	return validate(nip, rec)
}

// FromGusDetail builds a record from a GUS-only detail report: either a
// sole-trader/agriculture/professional report, or a legal report that is
// used because no KRS number could be extracted or the KRS fallback chain
// was exhausted.
func FromGusDetail(nip string, legal *model.GusLegalReport, sole *model.GusSoleTraderReport, regon, sessionID string) (*model.UnifiedCompanyRecord, *apperr.Error) {
	var name string
	var address model.AddressFragments
	var endOfActivity string
	var legalForm *string

	switch {
	case legal != nil:
		name = legal.Name
		address = legal.Address
		legalForm = ptr(NormalizeLegalFormGUS(legal.LegalForm))
	case sole != nil:
		name = sole.Name
		address = sole.Address
		endOfActivity = sole.EndOfActivityDate
	default:
		return nil, apperr.New(apperr.CodeDataMappingFailed, apperr.SourceGUS, "no gus detail report available to map")
	}

	status := model.StatusActive
	if endOfActivity != "" {
		status = model.StatusDeregisteredGus
	}

	signature := "gus-regon:" + regon
	if sessionID != "" {
		signature = "gus-session:" + sessionID
	}

	rec := &model.UnifiedCompanyRecord{
		Nip:    nip,
		Name:   name,
		Status: status,
		Address: model.Address{
			Province:   address.Province,
			District:   address.District,
			Commune:    address.Commune,
			City:       address.City,
			PostalCode: FormatPostalCode(address.PostalCode),
		},
		Regon:             ptr(regon),
		LegalForm:         legalForm,
		EntityType:        entityTypeFor(legal),
		DataSource:        model.DataSourceGUS,
		UpdatedAt:         time.Now().UTC(),
		ActivityEndDate:   optionalPtr(NormalizeDate(endOfActivity)),
		RegistrySignature: signature,
	}
	rec.IsActive = rec.Status == model.StatusActive

	return validate(nip, rec)
}

func entityTypeFor(legal *model.GusLegalReport) model.EntityType {
	if legal != nil {
		return model.EntityTypeLegal
	}
	return model.EntityTypeNatural
}

func fullName(ce *model.CeidgCompany) string {
	if ce.Name != "" {
		return ce.Name
	}
	return strings.TrimSpace(ce.OwnerFirstName + " " + ce.OwnerLastName)
}

// deriveKrsStatus implements the priority order from the KRS status rules:
// explicit deregistration, then bankruptcy, then liquidation, else active.
func deriveKrsStatus(k *model.KrsResponse) model.Status {
	if strings.TrimSpace(k.DataWykreslenia) != "" {
		return model.StatusStruckOff
	}
	for _, e := range k.Entries {
		if e.Kind == "bankruptcy" {
			return model.StatusBankruptcy
		}
	}
	for _, e := range k.Entries {
		if e.Kind == "liquidation" {
			return model.StatusInLiquidation
		}
	}
	return model.StatusActive
}

func mapCeidgStatus(s model.CeidgStatus) model.Status {
	switch s {
	case model.CeidgStatusActive:
		return model.StatusActive
	case model.CeidgStatusDeregistered:
		return model.StatusDeregisteredGus
	case model.CeidgStatusSuspended:
		return model.StatusSuspended
	case model.CeidgStatusAwaitingStart, model.CeidgStatusExclusivelyAsCompany:
		return model.StatusInactive
	default:
		return model.StatusInactive
	}
}

// validate enforces the unified-record invariants, returning
// DATA_MAPPING_FAILED if any is violated.
func validate(requestNip string, rec *model.UnifiedCompanyRecord) (*model.UnifiedCompanyRecord, *apperr.Error) {
	if rec.Nip != requestNip {
		return nil, apperr.New(apperr.CodeDataMappingFailed, apperr.Source(rec.DataSource), "mapped record nip does not match request nip").
			WithDetails(fmt.Sprintf("request=%s mapped=%s", requestNip, rec.Nip))
	}
	if rec.DataSource == model.DataSourceKRS && rec.EntityType != model.EntityTypeLegal {
		return nil, apperr.New(apperr.CodeDataMappingFailed, apperr.SourceKRS, "krs-sourced record must have entityType LEGAL")
	}
	if rec.DataSource == model.DataSourceCEIDG {
		if rec.EntityType != model.EntityTypeNatural {
			return nil, apperr.New(apperr.CodeDataMappingFailed, apperr.SourceCEIDG, "ceidg-sourced record must have entityType NATURAL")
		}
		if rec.LegalForm == nil || *rec.LegalForm != "DZIAŁALNOŚĆ_GOSPODARCZA" {
			return nil, apperr.New(apperr.CodeDataMappingFailed, apperr.SourceCEIDG, "ceidg-sourced record must have legalForm DZIAŁALNOŚĆ_GOSPODARCZA")
		}
	}
	if rec.IsActive != (rec.Status == model.StatusActive) {
		return nil, apperr.New(apperr.CodeDataMappingFailed, apperr.Source(rec.DataSource), "isActive must agree with status==AKTYWNY")
	}
	return rec, nil
}

func ptr[T any](v T) *T { return &v }

func optionalPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
