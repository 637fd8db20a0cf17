package mapper

import (
	"regexp"
	"strings"
)

var fiveDigitPostal = regexp.MustCompile(`^\d{5}$`)

// FormatPostalCode reformats a bare five-digit code as XX-XXX; any other
// shape (already dashed, wrong length, non-numeric) is preserved as-is.
// Idempotent: formatting an already-formatted code is a no-op.
func FormatPostalCode(code string) string {
	if fiveDigitPostal.MatchString(code) {
		return code[:2] + "-" + code[2:]
	}
	return code
}

var ddmmyyyy = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})$`)

// NormalizeDate converts DD.MM.YYYY to YYYY-MM-DD; YYYY-MM-DD and empty
// strings pass through unchanged. Idempotent on YYYY-MM-DD inputs.
func NormalizeDate(date string) string {
	if m := ddmmyyyy.FindStringSubmatch(date); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	return date
}

// krsLegalFormCatalog is matched in order; the first case-insensitive
// substring hit wins. More specific forms that are substrings of a more
// general one must be listed first (PROSTA SPÓŁKA AKCYJNA before SPÓŁKA
// AKCYJNA).
var krsLegalFormCatalog = []string{
	"PROSTA SPÓŁKA AKCYJNA",
	"SPÓŁKA AKCYJNA",
	"SPÓŁKA Z OGRANICZONĄ ODPOWIEDZIALNOŚCIĄ",
	"SPÓŁKA KOMANDYTOWO-AKCYJNA",
	"SPÓŁKA KOMANDYTOWA",
	"SPÓŁKA JAWNA",
	"SPÓŁKA PARTNERSKA",
	"SPÓŁDZIELNIA",
	"FUNDACJA",
	"STOWARZYSZENIE",
}

// NormalizeLegalFormKRS matches raw against the KRS legal-form catalog,
// falling back to INNA when nothing matches.
func NormalizeLegalFormKRS(raw string) string {
	return matchCatalog(raw, krsLegalFormCatalog)
}

// gusLegalFormCatalog is the smaller subset GUS reports recognize.
var gusLegalFormCatalog = []string{
	"SPÓŁKA AKCYJNA",
	"SPÓŁKA Z OGRANICZONĄ ODPOWIEDZIALNOŚCIĄ",
	"SPÓŁDZIELNIA",
	"FUNDACJA",
}

// NormalizeLegalFormGUS matches raw against the smaller GUS legal-form
// catalog, falling back to INNA.
func NormalizeLegalFormGUS(raw string) string {
	return matchCatalog(raw, gusLegalFormCatalog)
}

func matchCatalog(raw string, catalog []string) string {
	upper := strings.ToUpper(raw)
	for _, form := range catalog {
		if strings.Contains(upper, form) {
			return form
		}
	}
	return "INNA"
}
