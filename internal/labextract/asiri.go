package labextract

// AsiriID is the id of the ASIRI Laboratories engine.
const AsiriID = "asiri"

// asiriPatterns is the ASIRI layout table, most specific first.
var asiriPatterns = []Pattern{
	{
		// TOTAL WHITE CELL COUNT 4.0 - 11.0 L 2.1 10^9/L
		ID:       "asiri.range-flag-result-unit",
		Contains: []string{"WHITE CELL", "PLATELET"},
		Equals:   []string{"WBC"},
		After: []Slot{
			{Kind: SlotRange},
			{Kind: SlotFlag, Optional: true},
			{Kind: SlotResult},
			{Kind: SlotUnit},
		},
	},
	{
		// BASOPHILS 0.6 %
		ID:     "asiri.basophils",
		Equals: []string{"BASOPHILS"},
		After:  []Slot{{Kind: SlotResult}, {Kind: SlotPercent}},
	},
	{
		// 65 NEUTROPHILS % 40%-75% (2.0-7.5)
		ID:     "asiri.differential",
		Equals: []string{"NEUTROPHILS", "LYMPHOCYTES", "MONOCYTES", "EOSINOPHILS", "BASOPHILS"},
		Before: []Slot{{Kind: SlotResult}},
		After: []Slot{
			{Kind: SlotPercent},
			{Kind: SlotRange, Optional: true},
			{Kind: SlotFlag, Optional: true},
		},
	},
	{
		// 5.5 % ( 37 mmol/mol ) HAEMOGLOBIN A1C
		ID:       "asiri.hba1c",
		Contains: []string{"A1C"},
		Before:   []Slot{{Kind: SlotResult}, {Kind: SlotPercent}, {Kind: SlotCompanion}},
	},
	{
		// APPEARANCE Slightly Turbid. Applies only to names with enumerated values.
		ID:    "asiri.urine-enumerated",
		After: []Slot{{Kind: SlotEnum}},
	},
	{
		// S.G. (REFRACTOMETER) 1.022
		ID:     "asiri.urine-numeric",
		Equals: []string{"S.G. (REFRACTOMETER)", "PH"},
		After:  []Slot{{Kind: SlotResult}},
	},
	{
		// PUS CELLS 2 - 4 /H.P.F
		ID:     "asiri.urine-count",
		Equals: []string{"PUS CELLS", "RED CELLS"},
		After:  []Slot{{Kind: SlotCount}, {Kind: SlotHPF}},
	},
	{
		// DENGUE VIRUS NS1 ANTIGEN, result printed on a later line
		ID:       "asiri.dengue",
		Contains: []string{"DENGUE"},
		After: []Slot{
			{Kind: SlotGap, Max: 400},
			{Kind: SlotText, Values: []string{"POSITIVE", "NEGATIVE", "Reactive", "Non-reactive", "Detected", "Not Detected"}},
		},
	},
	{
		// C. REACTIVE PROTEIN 2.8 mg/L 0.1 - 5.0
		ID:       "asiri.crp",
		Contains: []string{"REACTIVE PROTEIN"},
		Equals:   []string{"CRP"},
		After: []Slot{
			{Kind: SlotResult},
			{Kind: SlotUnit},
			{Kind: SlotFlag, Optional: true},
			{Kind: SlotRange},
		},
	},
	{
		// 4.0 - 5.2 4.63 RED BLOOD CELLS 10^12/L
		ID:     "asiri.range-result-name-unit",
		Before: []Slot{{Kind: SlotRange}, {Kind: SlotResult}},
		After:  []Slot{{Kind: SlotUnit}},
	},
	{
		// 11.0 - 14.0 ... 12.7 HAEMOGLOBIN g/dL, with text between range and result
		ID:     "asiri.haemoglobin-lookback",
		Equals: []string{"HAEMOGLOBIN", "HEMOGLOBIN"},
		Before: []Slot{{Kind: SlotRange}, {Kind: SlotGap, Max: 60}, {Kind: SlotResult}},
		After:  []Slot{{Kind: SlotUnit}},
	},
}

// AsiriSpec returns the engine for ASIRI Laboratories reports.
func AsiriSpec() EngineSpec {
	patterns := make([]Pattern, len(asiriPatterns))
	copy(patterns, asiriPatterns)
	return EngineSpec{
		ID:          AsiriID,
		Name:        "ASIRI Laboratories",
		Version:     "1.0.0",
		Description: "Extracts test results from ASIRI laboratory reports",
		Laboratory:  "ASIRI LABORATORIES",
		Vocabulary:  DefaultVocabularySpec(),
		Patterns:    patterns,
		Sections:    append([]SectionSpec(nil), defaultSections...),
		Detection: Detection{
			Markers:        []string{"ASIRI", "ASIRI LABORATORIES", "ASIRI HEALTH"},
			MarkerScore:    0.9,
			SignatureTests: []string{"TOTAL WHITE CELL COUNT", "HAEMOGLOBIN", "DENGUE VIRUS NS1"},
			MinSignatures:  2,
			SignatureScore: 0.7,
			BaseScore:      0.3,
		},
	}
}
