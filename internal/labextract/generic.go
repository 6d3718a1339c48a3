package labextract

// GenericID is the id of the layout-agnostic engine.
const GenericID = "generic"

var genericPatterns = []Pattern{
	{
		// GLUCOSE 5.4 mmol/L H 3.9 - 6.1
		ID: "generic.result-unit-flag-range",
		After: []Slot{
			{Kind: SlotResult},
			{Kind: SlotUnit},
			{Kind: SlotFlag, Optional: true},
			{Kind: SlotRange, Optional: true},
		},
	},
	{
		// HIV 1/2 ANTIBODY : Non-reactive
		ID:    "generic.qualitative",
		After: []Slot{{Kind: SlotText}},
	},
}

// GenericSpec returns the fallback engine for reports printed in the common
// "name result unit range" order.
func GenericSpec() EngineSpec {
	patterns := make([]Pattern, len(genericPatterns))
	copy(patterns, genericPatterns)
	return EngineSpec{
		ID:          GenericID,
		Name:        "Generic laboratory report",
		Version:     "1.0.0",
		Description: "Extracts results printed as name, result, unit and reference range",
		Vocabulary:  DefaultVocabularySpec(),
		Patterns:    patterns,
		Sections:    append([]SectionSpec(nil), defaultSections...),
		Detection: Detection{
			SignatureTests: []string{"REFERENCE RANGE", "RESULT", "UNIT"},
			MinSignatures:  3,
			SignatureScore: 0.6,
			BaseScore:      0.2,
		},
	}
}
