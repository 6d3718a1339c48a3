package labextract

import "strings"

// SectionSpec bounds one report section by keywords.
type SectionSpec struct {
	Category string   `json:"category"`
	Start    []string `json:"start"`
	End      []string `json:"end"`
}

// Section is a slice of the document. Start and End are byte offsets into
// the text it was extracted from.
type Section struct {
	Name  string
	Start int
	End   int
	Text  string
}

// ExtractSection returns the text from the earliest start keyword up to the
// earliest end keyword that follows it, or to the end of the text when none
// does. Keywords match case-insensitively.
func ExtractSection(text string, start, end []string) (Section, bool) {
	upper := upperASCII(text)
	from := -1
	for _, kw := range start {
		if kw == "" {
			continue
		}
		if i := strings.Index(upper, upperASCII(kw)); i >= 0 && (from < 0 || i < from) {
			from = i
		}
	}
	if from < 0 {
		return Section{}, false
	}

	to := len(text)
	for _, kw := range end {
		if kw == "" {
			continue
		}
		if i := strings.Index(upper[from+1:], upperASCII(kw)); i >= 0 && from+1+i < to {
			to = from + 1 + i
		}
	}
	return Section{Start: from, End: to, Text: text[from:to]}, true
}

// defaultSections are the report sections of the built-in engines.
var defaultSections = []SectionSpec{
	{
		Category: CategoryBloodCount,
		Start:    []string{"complete blood count", "automated count", "haematology", "full blood count", "cbc"},
		End:      []string{"chromatographic", "pathology", "urine", "clinical chemistry", "serology"},
	},
	{
		Category: CategorySerology,
		Start:    []string{"chromatographic", "serology", "dengue", "ns1", "antigen", "antibody"},
		End:      []string{"pathology", "urine", "clinical chemistry"},
	},
	{
		Category: CategoryUrine,
		Start:    []string{"urine full report", "urine", "pathology"},
		End:      []string{"clinical chemistry", "specialised chemistry", "end of report"},
	},
	{
		Category: CategoryChemistry,
		Start:    []string{"clinical chemistry", "specialised chemistry", "biochemistry"},
		End:      []string{"end of report"},
	},
}
