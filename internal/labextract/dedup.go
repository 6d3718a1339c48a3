package labextract

import "sort"

// KeyFunc maps a test name onto its canonical key.
type KeyFunc func(testName string) string

// Merge keeps one candidate per canonical key. Within a key the higher
// confidence wins, then the candidate with more of unit and range populated,
// then the earliest source position. The result is ordered by source
// position. Merge is idempotent.
func Merge(candidates []Candidate, key KeyFunc) []Candidate {
	if key == nil {
		key = normalizePhrase
	}
	best := make(map[string]int, len(candidates))
	var out []Candidate
	for _, c := range candidates {
		k := key(c.TestName)
		i, seen := best[k]
		if !seen {
			best[k] = len(out)
			out = append(out, c)
			continue
		}
		if better(c, out[i]) {
			out[i] = c
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SourcePosition != out[j].SourcePosition {
			return out[i].SourcePosition < out[j].SourcePosition
		}
		return out[i].TestName < out[j].TestName
	})
	return out
}

func better(a, b Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if fa, fb := optionalFields(a), optionalFields(b); fa != fb {
		return fa > fb
	}
	return a.SourcePosition < b.SourcePosition
}

func optionalFields(c Candidate) int {
	n := 0
	if c.HasUnit() {
		n++
	}
	if c.HasRange() {
		n++
	}
	return n
}
