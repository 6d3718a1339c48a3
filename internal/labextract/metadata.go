package labextract

import (
	"regexp"
	"strings"
)

// ReportMetadata is the header information printed on a report.
type ReportMetadata struct {
	UHID              string `json:"uhid,omitempty"`
	PatientName       string `json:"patientName,omitempty"`
	Age               string `json:"age,omitempty"`
	DateOfBirth       string `json:"dateOfBirth,omitempty"`
	Gender            string `json:"gender,omitempty"`
	ReferredBy        string `json:"referredBy,omitempty"`
	SampleCollectedAt string `json:"sampleCollectedAt,omitempty"`
	ReportedAt        string `json:"reportedAt,omitempty"`
	ReferenceNo       string `json:"referenceNo,omitempty"`
	Laboratory        string `json:"laboratory,omitempty"`
}

// IsZero reports whether no header field was found.
func (m ReportMetadata) IsZero() bool {
	return m == ReportMetadata{}
}

// labelStop ends a header value at the next known label or line break.
const labelStop = `(?:\s+(?:UHID|PATIENT|AGE|REFERRED\s+BY|SAMPLE\s+DATE|REPORT\s+DATE|REFERENCE\s+NO)\b|\n|$)`

type metadataRule struct {
	re  *regexp.Regexp
	set func(m *ReportMetadata, groups []string)
}

var metadataRules = []metadataRule{
	{
		re:  regexp.MustCompile(`(?i)UHID\s*:\s*(\d+)`),
		set: func(m *ReportMetadata, g []string) { m.UHID = g[1] },
	},
	{
		re:  regexp.MustCompile(`(?i)PATIENT(?:\s+NAME)?\s*:\s*([^\n]{1,80}?)` + labelStop),
		set: func(m *ReportMetadata, g []string) { m.PatientName = g[1] },
	},
	{
		re: regexp.MustCompile(`(?i)AGE\s*:\s*(\d+\s*Y\s*/\s*([MF]))\s*(\d{2}/\d{2}/\d{4})?`),
		set: func(m *ReportMetadata, g []string) {
			m.Age = strings.Join(strings.Fields(g[1]), "")
			m.DateOfBirth = g[3]
			if strings.EqualFold(g[2], "F") {
				m.Gender = "female"
			} else {
				m.Gender = "male"
			}
		},
	},
	{
		re:  regexp.MustCompile(`(?i)REFERRED\s+BY\s*:\s*([^\n]{1,80}?)` + labelStop),
		set: func(m *ReportMetadata, g []string) { m.ReferredBy = g[1] },
	},
	{
		re:  regexp.MustCompile(`(?i)SAMPLE\s+DATE\s*&\s*TIME\s*:\s*([^\n]{1,40}?)` + labelStop),
		set: func(m *ReportMetadata, g []string) { m.SampleCollectedAt = g[1] },
	},
	{
		re:  regexp.MustCompile(`(?i)REPORT\s+DATE\s*&\s*TIME\s*:\s*([^\n]{1,40}?)` + labelStop),
		set: func(m *ReportMetadata, g []string) { m.ReportedAt = g[1] },
	},
	{
		re:  regexp.MustCompile(`(?i)REFERENCE\s+NO\.?\s*:\s*(\S+)`),
		set: func(m *ReportMetadata, g []string) { m.ReferenceNo = g[1] },
	},
}

// ExtractMetadata reads the report header fields. laboratory is recorded
// as-is when non-empty.
func ExtractMetadata(text, laboratory string) ReportMetadata {
	var m ReportMetadata
	for _, rule := range metadataRules {
		g := rule.re.FindStringSubmatch(text)
		if g == nil {
			continue
		}
		for i := range g {
			g[i] = strings.TrimSpace(g[i])
		}
		rule.set(&m, g)
	}
	m.Laboratory = laboratory
	return m
}
