package labextract

import "time"

// Flag is the printed abnormal-direction marker next to a result.
type Flag string

const (
	FlagNone Flag = ""
	FlagHigh Flag = "H"
	FlagLow  Flag = "L"
)

// Candidate is one extracted measurement.
type Candidate struct {
	TestName       string   `json:"testName"`
	Value          string   `json:"value"`
	Unit           string   `json:"unit,omitempty"`
	ReferenceRange string   `json:"referenceRange,omitempty"`
	Flag           Flag     `json:"flag,omitempty"`
	Confidence     float64  `json:"confidence"`
	SourcePosition int      `json:"sourcePosition"`
	Category       string   `json:"category,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// HasUnit reports whether the unit slot is populated.
func (c Candidate) HasUnit() bool { return c.Unit != "" }

// HasRange reports whether the reference range slot is populated.
func (c Candidate) HasRange() bool { return c.ReferenceRange != "" }

// HasFlag reports whether the flag slot is populated.
func (c Candidate) HasFlag() bool { return c.Flag != FlagNone }

// ExtractionResult is everything an engine returns for one document.
type ExtractionResult struct {
	LabValues         []Candidate      `json:"labValues"`
	EngineID          string           `json:"engineId"`
	EngineVersion     string           `json:"engineVersion"`
	ExtractedAt       time.Time        `json:"extractedAt"`
	OverallConfidence float64          `json:"overallConfidence"`
	Report            *ReportMetadata  `json:"report,omitempty"`
	Summary           AttentionSummary `json:"summary"`
}

// EngineInfo describes a registered engine.
type EngineInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories"`
}

// overallConfidence is the mean candidate confidence, 0 when there are none.
func overallConfidence(values []Candidate) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v.Confidence
	}
	return sum / float64(len(values))
}
