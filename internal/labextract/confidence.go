package labextract

// Field weights in tenths. Scores are summed as integers so equal field sets
// always produce identical floats.
const (
	weightResult = 4
	weightUnit   = 3
	weightRange  = 2
	weightFlag   = 1
)

// Score rates a candidate by field completeness: result 0.4, unit 0.3,
// reference range 0.2, flag 0.1. Adding a field never lowers the score.
func Score(c Candidate) float64 {
	tenths := 0
	if c.Value != "" {
		tenths += weightResult
	}
	if c.HasUnit() {
		tenths += weightUnit
	}
	if c.HasRange() {
		tenths += weightRange
	}
	if c.HasFlag() {
		tenths += weightFlag
	}
	return float64(tenths) / 10
}
