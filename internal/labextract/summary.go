package labextract

import (
	"fmt"
	"strings"
)

// AttentionSummary lists the values a clinician should look at first.
type AttentionSummary struct {
	CriticalFindings  []string `json:"criticalFindings,omitempty"`
	PositiveResults   []string `json:"positiveResults,omitempty"`
	AbnormalValues    []string `json:"abnormalValues,omitempty"`
	RequiresAttention bool     `json:"requiresAttention"`
}

var positiveWords = []string{"POSITIVE", "REACTIVE", "DETECTED"}

// IsPositive reports whether a qualitative value reads as positive.
func IsPositive(value string) bool {
	upper := strings.ToUpper(value)
	if strings.HasPrefix(upper, "NON") || strings.HasPrefix(upper, "NOT") || strings.HasPrefix(upper, "NEGATIVE") {
		return false
	}
	if strings.HasPrefix(upper, "+") {
		return true
	}
	for _, w := range positiveWords {
		if strings.Contains(upper, w) {
			return true
		}
	}
	return false
}

// Summarize builds the attention summary for a set of values.
func Summarize(values []Candidate, rules []CriticalRule) AttentionSummary {
	var s AttentionSummary
	for _, v := range values {
		if v.HasFlag() {
			line := fmt.Sprintf("%s: %s", v.TestName, v.Value)
			if v.Unit != "" {
				line += " " + v.Unit
			}
			s.AbnormalValues = append(s.AbnormalValues, fmt.Sprintf("%s (%s)", line, v.Flag))
		}
		if !IsPositive(v.Value) {
			continue
		}
		s.PositiveResults = append(s.PositiveResults, fmt.Sprintf("%s: %s", v.TestName, v.Value))
		for _, r := range rules {
			if criticalMatch(r, v) {
				s.CriticalFindings = append(s.CriticalFindings, r.Message)
			}
		}
	}
	s.RequiresAttention = len(s.CriticalFindings) > 0 || len(s.PositiveResults) > 0 || len(s.AbnormalValues) > 0
	return s
}

func criticalMatch(r CriticalRule, v Candidate) bool {
	if !strings.Contains(strings.ToUpper(v.TestName), strings.ToUpper(r.TestContains)) {
		return false
	}
	upper := strings.ToUpper(v.Value)
	for _, val := range r.Values {
		if strings.Contains(upper, strings.ToUpper(val)) {
			return true
		}
	}
	return false
}
