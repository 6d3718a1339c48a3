package extraction

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/labextract/internal/labextract"
)

// Extraction is one stored run of an engine over a report. The denormalized
// columns mirror fields of Result so lists can be served without decoding it.
type Extraction struct {
	ID                uuid.UUID                   `db:"id" json:"id"`
	DocumentHash      string                      `db:"document_hash" json:"document_hash"`
	PatientRef        *string                     `db:"patient_ref" json:"patient_ref,omitempty"`
	EngineID          string                      `db:"engine_id" json:"engine_id"`
	EngineVersion     string                      `db:"engine_version" json:"engine_version"`
	ValueCount        int                         `db:"value_count" json:"value_count"`
	OverallConfidence float64                     `db:"overall_confidence" json:"overall_confidence"`
	RequiresAttention bool                        `db:"requires_attention" json:"requires_attention"`
	ExtractedAt       time.Time                   `db:"extracted_at" json:"extracted_at"`
	Result            labextract.ExtractionResult `db:"result" json:"result"`
	CreatedBy         *string                     `db:"created_by" json:"created_by,omitempty"`
	CreatedAt         time.Time                   `db:"created_at" json:"created_at"`

	// Set when the result came from the cache rather than a fresh run.
	Cached bool `db:"-" json:"cached"`
	// Detection score of the chosen engine; zero when the caller named one.
	DetectionScore float64 `db:"-" json:"detection_score,omitempty"`
}

func newExtraction(hash string, res labextract.ExtractionResult) *Extraction {
	return &Extraction{
		DocumentHash:      hash,
		EngineID:          res.EngineID,
		EngineVersion:     res.EngineVersion,
		ValueCount:        len(res.LabValues),
		OverallConfidence: res.OverallConfidence,
		RequiresAttention: res.Summary.RequiresAttention,
		ExtractedAt:       res.ExtractedAt,
		Result:            res,
	}
}

// Request is the body of POST /extractions and one item of a batch.
type Request struct {
	Text       string `json:"text"`
	EngineID   string `json:"engine,omitempty"`
	PatientRef string `json:"patient_ref,omitempty"`
}

// BatchItem is the outcome of one request in a batch, in request order.
type BatchItem struct {
	Index      int         `json:"index"`
	Extraction *Extraction `json:"extraction,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Detection is one engine's score for a document.
type Detection struct {
	EngineID string  `json:"engine"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
}

// DetectResponse lists every engine's score, highest first, and the engine
// Extract would pick.
type DetectResponse struct {
	Selected   string      `json:"selected"`
	Fallback   bool        `json:"fallback"`
	Detections []Detection `json:"detections"`
}
