package extraction

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ehr/labextract/internal/labextract"
	"github.com/ehr/labextract/internal/platform/fhir"
)

const (
	systemLocalTest   = "urn:labextract:test"
	systemReportNo    = "urn:labextract:reference-no"
	extConfidence     = "urn:labextract:confidence"
	extSourcePosition = "urn:labextract:source-position"
)

var interpretationDisplay = map[string]string{
	InterpHigh:     "High",
	InterpLow:      "Low",
	InterpNormal:   "Normal",
	InterpPositive: "Positive",
}

// ToFHIRBundle renders an extraction as a collection Bundle holding one
// DiagnosticReport and one laboratory Observation per value.
func ToFHIRBundle(e *Extraction) (*fhir.Bundle, error) {
	reportID := e.ID.String()
	resources := make([]map[string]interface{}, 0, len(e.Result.LabValues)+1)
	results := make([]fhir.Reference, 0, len(e.Result.LabValues))
	observations := make([]map[string]interface{}, 0, len(e.Result.LabValues))
	for i, v := range e.Result.LabValues {
		obs := observationToFHIR(e, fmt.Sprintf("%s-%d", reportID, i+1), v)
		observations = append(observations, obs)
		results = append(results, fhir.Reference{Reference: fhir.FormatReference("Observation", obs["id"].(string))})
	}
	resources = append(resources, reportToFHIR(e, results))
	resources = append(resources, observations...)
	return fhir.NewCollectionBundle(reportID, e.ExtractedAt, resources)
}

func meta(e *Extraction) fhir.Meta {
	ts := e.ExtractedAt
	return fhir.Meta{LastUpdated: &ts, Source: fmt.Sprintf("labextract:%s@%s", e.EngineID, e.EngineVersion)}
}

func reportToFHIR(e *Extraction, results []fhir.Reference) map[string]interface{} {
	issued := e.ExtractedAt.UTC().Format(time.RFC3339)
	result := map[string]interface{}{
		"resourceType": "DiagnosticReport",
		"id":           e.ID.String(),
		"meta":         meta(e),
		"status":       "final",
		"category":     reportCategories(e.Result.LabValues),
		"code":         fhir.CodeableConcept{Text: "Laboratory report"},
		"issued":       issued,
		"result":       results,
	}
	if e.PatientRef != nil {
		result["subject"] = fhir.Reference{Reference: fhir.FormatReference("Patient", *e.PatientRef)}
	}
	if r := e.Result.Report; r != nil {
		if r.ReferenceNo != "" {
			result["identifier"] = []fhir.Identifier{{System: systemReportNo, Value: r.ReferenceNo}}
		}
		if r.Laboratory != "" {
			result["performer"] = []fhir.Reference{{Type: "Organization", Display: r.Laboratory}}
		}
	}
	if s := e.Result.Summary; s.RequiresAttention {
		findings := append(append([]string{}, s.CriticalFindings...), s.AbnormalValues...)
		findings = append(findings, s.PositiveResults...)
		conclusion := strings.Join(findings, "; ")
		result["conclusion"] = conclusion
	}
	return result
}

// reportCategories is LAB plus one service section per category present,
// in a stable order.
func reportCategories(values []labextract.Candidate) []fhir.CodeableConcept {
	cats := []fhir.CodeableConcept{fhir.Concept(fhir.SystemDiagnosticService, "LAB", "Laboratory")}
	seen := map[string]bool{}
	var codes []string
	for _, v := range values {
		if s, ok := serviceSections[v.Category]; ok && !seen[s[0]] {
			seen[s[0]] = true
			codes = append(codes, v.Category)
		}
	}
	sort.Strings(codes)
	for _, c := range codes {
		s := serviceSections[c]
		cats = append(cats, fhir.Concept(fhir.SystemDiagnosticService, s[0], s[1]))
	}
	return cats
}

func observationToFHIR(e *Extraction, id string, v labextract.Candidate) map[string]interface{} {
	result := map[string]interface{}{
		"resourceType": "Observation",
		"id":           id,
		"meta":         meta(e),
		"status":       "final",
		"category": []fhir.CodeableConcept{
			fhir.Concept(fhir.SystemObservationCategory, "laboratory", "Laboratory"),
		},
		"code": fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: systemLocalTest, Code: testCode(v.TestName), Display: v.TestName}},
			Text:   v.TestName,
		},
		"issued": e.ExtractedAt.UTC().Format(time.RFC3339),
		"extension": []map[string]interface{}{
			{"url": extConfidence, "valueDecimal": v.Confidence},
			{"url": extSourcePosition, "valueInteger": v.SourcePosition},
		},
	}
	if e.PatientRef != nil {
		result["subject"] = fhir.Reference{Reference: fhir.FormatReference("Patient", *e.PatientRef)}
	}

	if f, ok := numeric(v.Value); ok {
		result["valueQuantity"] = fhir.Quantity{Value: &f, Unit: v.Unit}
	} else {
		value := v.Value
		if v.Unit != "" {
			value += " " + v.Unit
		}
		result["valueString"] = value
	}

	if v.HasRange() {
		rng := fhir.Range{Text: v.ReferenceRange}
		low, high := bounds(v.ReferenceRange)
		if low != nil {
			rng.Low = &fhir.Quantity{Value: low, Unit: v.Unit}
		}
		if high != nil {
			rng.High = &fhir.Quantity{Value: high, Unit: v.Unit}
		}
		result["referenceRange"] = []fhir.Range{rng}
	}

	if code := interpret(v); code != "" {
		result["interpretation"] = []fhir.CodeableConcept{
			fhir.Concept(fhir.SystemInterpretation, code, interpretationDisplay[code]),
		}
	}

	if len(v.Warnings) > 0 {
		notes := make([]map[string]string, 0, len(v.Warnings))
		for _, w := range v.Warnings {
			notes = append(notes, map[string]string{"text": w})
		}
		result["note"] = notes
	}
	return result
}
