package extraction

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ehr/labextract/internal/labextract"
)

// Interpretation codes shared by the FHIR and HL7 exports.
const (
	InterpHigh     = "H"
	InterpLow      = "L"
	InterpNormal   = "N"
	InterpPositive = "POS"
)

var (
	numericValue = regexp.MustCompile(`^[<>]?\s*(\d+(?:\.\d+)?)$`)
	rangeBetween = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*%?\s*-\s*(\d+(?:\.\d+)?)`)
	rangeBelow   = regexp.MustCompile(`(?i)^\s*(?:<=?|≤|up\s+to)\s*(\d+(?:\.\d+)?)`)
	rangeAbove   = regexp.MustCompile(`(?i)^\s*(?:>=?|≥)\s*(\d+(?:\.\d+)?)`)
)

// numeric returns the value as a number when it is a single quantity.
// Qualitative values and counts such as "2 - 4" are not numeric.
func numeric(value string) (float64, bool) {
	m := numericValue.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	return f, err == nil
}

// bounds parses the leading low/high pair of a printed reference range.
func bounds(rng string) (low, high *float64) {
	if m := rangeBetween.FindStringSubmatch(rng); m != nil {
		return parseBound(m[1]), parseBound(m[2])
	}
	if m := rangeBelow.FindStringSubmatch(rng); m != nil {
		return nil, parseBound(m[1])
	}
	if m := rangeAbove.FindStringSubmatch(rng); m != nil {
		return parseBound(m[1]), nil
	}
	return nil, nil
}

func parseBound(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// interpret classifies a value: the printed flag wins, then a positive
// qualitative result, then normal when a reference range was printed.
func interpret(c labextract.Candidate) string {
	switch {
	case c.Flag == labextract.FlagHigh:
		return InterpHigh
	case c.Flag == labextract.FlagLow:
		return InterpLow
	case labextract.IsPositive(c.Value):
		return InterpPositive
	case c.HasRange():
		return InterpNormal
	}
	return ""
}

// serviceSections maps value categories to HL7 table 0074 diagnostic
// service sections.
var serviceSections = map[string][2]string{
	labextract.CategoryBloodCount: {"HM", "Hematology"},
	labextract.CategorySerology:   {"SR", "Serology"},
	labextract.CategoryUrine:      {"UR", "Urinalysis"},
	labextract.CategoryChemistry:  {"CH", "Chemistry"},
}

// testCode derives a stable local code from a test name.
func testCode(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
