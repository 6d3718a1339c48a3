package labextract

import (
	"slices"
	"strings"
)

// Clinical categories used to group test names and scope section search.
const (
	CategoryBloodCount = "complete_blood_count"
	CategorySerology   = "serology"
	CategoryUrine      = "urine_analysis"
	CategoryChemistry  = "clinical_chemistry"
)

// Category is an ordered group of known test names.
type Category struct {
	Name  string   `json:"name"`
	Tests []string `json:"tests"`
}

// CanonicalRule maps test-name spellings onto one canonical key. A name
// matches when it contains any Contains entry or equals any Equals entry
// (both compared upper-cased).
type CanonicalRule struct {
	Key      string   `json:"key"`
	Contains []string `json:"contains,omitempty"`
	Equals   []string `json:"equals,omitempty"`
}

// CriticalRule marks a result as a critical finding for the attention summary.
type CriticalRule struct {
	TestContains string   `json:"testContains"`
	Values       []string `json:"values"`
	Message      string   `json:"message"`
}

// VocabularySpec is the raw data a Vocabulary is built from.
type VocabularySpec struct {
	Categories  []Category          `json:"categories"`
	Units       []string            `json:"units"`
	TextResults []string            `json:"textResults"`
	Enumerated  map[string][]string `json:"enumerated,omitempty"`
	Canonical   []CanonicalRule     `json:"canonical,omitempty"`
	Critical    []CriticalRule      `json:"critical,omitempty"`
}

// Vocabulary holds the known test names, units and result values of one
// engine. It is read-only after NewVocabulary returns.
type Vocabulary struct {
	spec VocabularySpec

	testNames  []string
	categoryOf map[string]string
	tests      map[string]struct{}
	units      map[string]struct{}
	texts      map[string]struct{}
	prefixes   map[string]struct{}
	enumerated map[string][]string
}

// NewVocabulary copies spec and builds the lookup indexes.
func NewVocabulary(spec VocabularySpec) *Vocabulary {
	v := &Vocabulary{
		categoryOf: make(map[string]string),
		tests:      make(map[string]struct{}),
		units:      make(map[string]struct{}),
		texts:      make(map[string]struct{}),
		prefixes:   make(map[string]struct{}),
		enumerated: make(map[string][]string),
	}

	for _, c := range spec.Categories {
		tests := slices.Clone(c.Tests)
		v.spec.Categories = append(v.spec.Categories, Category{Name: c.Name, Tests: tests})
		for _, t := range tests {
			key := normalizePhrase(t)
			if _, dup := v.tests[key]; dup {
				continue
			}
			v.tests[key] = struct{}{}
			v.categoryOf[key] = c.Name
			v.testNames = append(v.testNames, t)
			v.addPrefixes(key)
		}
	}

	v.spec.Units = slices.Clone(spec.Units)
	for _, u := range spec.Units {
		v.units[u] = struct{}{}
	}

	v.spec.TextResults = slices.Clone(spec.TextResults)
	for _, t := range spec.TextResults {
		key := normalizePhrase(t)
		v.texts[key] = struct{}{}
		v.addPrefixes(key)
	}

	v.spec.Enumerated = make(map[string][]string, len(spec.Enumerated))
	for name, values := range spec.Enumerated {
		v.spec.Enumerated[name] = slices.Clone(values)
		v.enumerated[normalizePhrase(name)] = slices.Clone(values)
	}

	v.spec.Canonical = slices.Clone(spec.Canonical)
	v.spec.Critical = slices.Clone(spec.Critical)
	return v
}

func (v *Vocabulary) addPrefixes(phrase string) {
	words := strings.Fields(phrase)
	for i := 1; i <= len(words); i++ {
		v.prefixes[strings.Join(words[:i], " ")] = struct{}{}
	}
}

// Spec returns a copy of the data the vocabulary was built from.
func (v *Vocabulary) Spec() VocabularySpec {
	return NewVocabulary(v.spec).spec
}

// Categories returns the categories in registration order.
func (v *Vocabulary) Categories() []Category {
	out := make([]Category, len(v.spec.Categories))
	for i, c := range v.spec.Categories {
		out[i] = Category{Name: c.Name, Tests: slices.Clone(c.Tests)}
	}
	return out
}

// TestNames returns every known test name in registration order.
func (v *Vocabulary) TestNames() []string {
	return slices.Clone(v.testNames)
}

// CategoryOf returns the category a known test name belongs to.
func (v *Vocabulary) CategoryOf(name string) string {
	return v.categoryOf[normalizePhrase(name)]
}

// IsKnownTest reports whether name is a known test name, ignoring case and
// whitespace runs.
func (v *Vocabulary) IsKnownTest(name string) bool {
	_, ok := v.tests[normalizePhrase(name)]
	return ok
}

// IsUnit reports whether s is exactly a known unit.
func (v *Vocabulary) IsUnit(s string) bool {
	_, ok := v.units[s]
	return ok
}

// Units returns the known units.
func (v *Vocabulary) Units() []string {
	return slices.Clone(v.spec.Units)
}

// IsTextResult reports whether s is a known qualitative result.
func (v *Vocabulary) IsTextResult(s string) bool {
	_, ok := v.texts[normalizePhrase(s)]
	return ok
}

// TextResults returns the known qualitative results.
func (v *Vocabulary) TextResults() []string {
	return slices.Clone(v.spec.TextResults)
}

// IsPhrasePrefix reports whether phrase is a word-aligned prefix of a known
// test name or text result.
func (v *Vocabulary) IsPhrasePrefix(phrase string) bool {
	_, ok := v.prefixes[normalizePhrase(phrase)]
	return ok
}

// EnumeratedValues returns the printable qualitative values of a test.
func (v *Vocabulary) EnumeratedValues(name string) []string {
	return slices.Clone(v.enumerated[normalizePhrase(name)])
}

// CanonicalKey returns the deduplication key of a test name.
func (v *Vocabulary) CanonicalKey(name string) string {
	upper := normalizePhrase(name)
	for _, r := range v.spec.Canonical {
		for _, eq := range r.Equals {
			if upper == normalizePhrase(eq) {
				return r.Key
			}
		}
		for _, sub := range r.Contains {
			if strings.Contains(upper, strings.ToUpper(sub)) {
				return r.Key
			}
		}
	}
	return upper
}

// normalizePhrase upper-cases s and collapses whitespace runs.
func normalizePhrase(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// defaultUnits and defaultTextResults are shared by the built-in engines.
var defaultUnits = []string{
	"10^9/L", "10^12/L", "10^3/μL", "10^6/μL",
	"g/dL", "mg/dL", "mg/L", "ng/mL", "μg/mL", "pg/mL",
	"%", "fl", "fL", "pg", "L/L(%)", "mmol/L", "mmol/mol", "IU/mL", "seconds", "/H.P.F",
}

var defaultTextResults = []string{
	"POSITIVE", "NEGATIVE", "ABSENT", "PRESENT", "Nil", "Normal", "Abnormal",
	"Reactive", "Non-reactive", "Detected", "Not Detected",
}

// defaultCategories is the catalog shared by the built-in engines.
var defaultCategories = []Category{
	{Name: CategoryBloodCount, Tests: []string{
		"TOTAL WHITE CELL COUNT", "WHITE CELL COUNT", "WBC",
		"NEUTROPHILS", "LYMPHOCYTES", "MONOCYTES", "EOSINOPHILS", "BASOPHILS",
		"HAEMOGLOBIN", "HEMOGLOBIN",
		"RED BLOOD CELLS", "RED CELL COUNT",
		"HAEMATOCRIT", "HEMATOCRIT",
		"MEAN CELL VOLUME", "MEAN CELL HAEMOGLOBIN", "M.C.H. CONCENTRATION",
		"RED CELLS DISTRIBUTION WIDTH",
		"PLATELET COUNT",
	}},
	{Name: CategorySerology, Tests: []string{
		"DENGUE VIRUS NS1 ANTIGEN", "DENGUE NS1",
	}},
	{Name: CategoryUrine, Tests: []string{
		"COLOUR", "APPEARANCE", "S.G. (REFRACTOMETER)", "PH", "PROTEIN", "GLUCOSE",
		"KETONE BODIES", "BILIRUBIN", "NITRITE", "UROBILINOGEN",
		"PUS CELLS", "RED CELLS", "EPITHELIAL CELLS", "CASTS", "CRYSTALS",
	}},
	{Name: CategoryChemistry, Tests: []string{
		"C. REACTIVE PROTEIN", "C-REACTIVE PROTEIN", "CRP",
		"HAEMOGLOBIN A1C", "HBA1C",
		"FASTING PLASMA GLUCOSE", "SERUM CREATININE",
	}},
}

var defaultCanonical = []CanonicalRule{
	{Key: "DENGUE NS1", Contains: []string{"DENGUE"}},
	{Key: "S.G. (REFRACTOMETER)", Contains: []string{"S.G"}},
	{Key: "TOTAL WHITE CELL COUNT", Contains: []string{"WHITE CELL"}, Equals: []string{"WBC"}},
	{Key: "C. REACTIVE PROTEIN", Contains: []string{"REACTIVE PROTEIN"}, Equals: []string{"CRP"}},
	{Key: "HAEMOGLOBIN A1C", Contains: []string{"A1C"}},
	{Key: "HAEMOGLOBIN", Equals: []string{"HAEMOGLOBIN", "HEMOGLOBIN"}},
	{Key: "HAEMATOCRIT", Equals: []string{"HAEMATOCRIT", "HEMATOCRIT"}},
	{Key: "RED BLOOD CELLS", Equals: []string{"RED BLOOD CELLS", "RED CELL COUNT"}},
}

var defaultCritical = []CriticalRule{
	{TestContains: "DENGUE", Values: []string{"POSITIVE", "REACTIVE", "DETECTED"},
		Message: "Dengue NS1 antigen positive: assess for dengue fever and monitor platelet count"},
}

// grades and urine colours shared by the qualitative urinalysis parameters.
var (
	urineGrades   = []string{"Nil", "Trace", "Negative", "Positive", "++++ (Positive)", "+++ (Positive)", "++ (Positive)", "+ (Positive)", "++++", "+++", "++", "+"}
	urineDeposits = []string{"Nil", "Few", "Occasional", "Moderate", "Many", "Plenty", "++++", "+++", "++", "+"}
)

var defaultEnumerated = map[string][]string{
	"COLOUR":           {"Pale yellow", "Dark yellow", "Yellow", "Straw", "Amber", "Orange", "Red", "Brown", "Colourless"},
	"APPEARANCE":       {"Slightly Turbid", "Turbid", "Clear", "Cloudy", "Hazy"},
	"PROTEIN":          urineGrades,
	"GLUCOSE":          urineGrades,
	"KETONE BODIES":    urineGrades,
	"BILIRUBIN":        urineGrades,
	"NITRITE":          urineGrades,
	"UROBILINOGEN":     {"Normal Amounts", "Normal", "Increased", "Nil"},
	"EPITHELIAL CELLS": urineDeposits,
	"CASTS":            urineDeposits,
	"CRYSTALS":         urineDeposits,
}

// DefaultVocabularySpec returns the shared built-in catalog.
func DefaultVocabularySpec() VocabularySpec {
	enumerated := make(map[string][]string, len(defaultEnumerated))
	for k, v := range defaultEnumerated {
		enumerated[k] = slices.Clone(v)
	}
	cats := make([]Category, len(defaultCategories))
	for i, c := range defaultCategories {
		cats[i] = Category{Name: c.Name, Tests: slices.Clone(c.Tests)}
	}
	return VocabularySpec{
		Categories:  cats,
		Units:       slices.Clone(defaultUnits),
		TextResults: slices.Clone(defaultTextResults),
		Enumerated:  enumerated,
		Canonical:   slices.Clone(defaultCanonical),
		Critical:    slices.Clone(defaultCritical),
	}
}
