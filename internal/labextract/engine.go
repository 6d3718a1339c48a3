package labextract

import (
	"fmt"
	"strings"
	"time"
)

// Engine extracts lab values for one report family.
type Engine interface {
	Info() EngineInfo
	// Extract runs the full pipeline. Empty text yields no values.
	Extract(text string) ExtractionResult
	// CanHandle is a cheap marker check in [0,1] used for auto-selection.
	CanHandle(text string) float64
}

// Detection configures CanHandle. Any marker scores MarkerScore; otherwise
// at least MinSignatures signature tests score SignatureScore; otherwise
// BaseScore.
type Detection struct {
	Markers        []string `json:"markers,omitempty"`
	MarkerScore    float64  `json:"markerScore,omitempty"`
	SignatureTests []string `json:"signatureTests,omitempty"`
	MinSignatures  int      `json:"minSignatures,omitempty"`
	SignatureScore float64  `json:"signatureScore,omitempty"`
	BaseScore      float64  `json:"baseScore"`
}

// EngineSpec is everything a RuleEngine is built from.
type EngineSpec struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description,omitempty"`
	Laboratory  string         `json:"laboratory,omitempty"`
	Vocabulary  VocabularySpec `json:"vocabulary"`
	Patterns    []Pattern      `json:"patterns,omitempty"`
	Sections    []SectionSpec  `json:"sections,omitempty"`
	Detection   Detection      `json:"detection"`
}

// RuleEngine is an Engine driven entirely by an EngineSpec. It is immutable
// and safe for concurrent use.
type RuleEngine struct {
	info       EngineInfo
	laboratory string
	vocab      *Vocabulary
	recon      *Reconstructor
	locator    *Locator
	sections   map[string]SectionSpec
	detection  Detection
	now        func() time.Time
}

// Option configures a RuleEngine.
type Option func(*RuleEngine)

// WithClock replaces the clock used for ExtractedAt.
func WithClock(now func() time.Time) Option {
	return func(e *RuleEngine) { e.now = now }
}

// NewRuleEngine validates spec and compiles its patterns.
func NewRuleEngine(spec EngineSpec, opts ...Option) (*RuleEngine, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("engine id is required")
	}
	if spec.Version == "" {
		return nil, fmt.Errorf("engine %s: version is required", spec.ID)
	}
	vocab := NewVocabulary(spec.Vocabulary)
	if len(vocab.TestNames()) == 0 {
		return nil, fmt.Errorf("engine %s: vocabulary has no test names", spec.ID)
	}
	recon, err := NewReconstructor(vocab, spec.Patterns)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", spec.ID, err)
	}

	e := &RuleEngine{
		info: EngineInfo{
			ID:          spec.ID,
			Name:        spec.Name,
			Version:     spec.Version,
			Description: spec.Description,
		},
		laboratory: spec.Laboratory,
		vocab:      vocab,
		recon:      recon,
		locator:    recon.locator,
		sections:   make(map[string]SectionSpec, len(spec.Sections)),
		detection:  spec.Detection,
		now:        time.Now,
	}
	for _, c := range vocab.Categories() {
		e.info.Categories = append(e.info.Categories, c.Name)
	}
	for _, s := range spec.Sections {
		e.sections[s.Category] = s
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *RuleEngine) Info() EngineInfo {
	info := e.info
	info.Categories = append([]string(nil), e.info.Categories...)
	return info
}

// Vocabulary returns the engine's vocabulary.
func (e *RuleEngine) Vocabulary() *Vocabulary {
	return e.vocab
}

func (e *RuleEngine) CanHandle(text string) float64 {
	upper := upperASCII(text)
	if e.hasMarker(upper) {
		return e.detection.MarkerScore
	}
	if e.detection.MinSignatures > 0 {
		found := 0
		for _, t := range e.detection.SignatureTests {
			if strings.Contains(upper, upperASCII(t)) {
				found++
			}
		}
		if found >= e.detection.MinSignatures {
			return e.detection.SignatureScore
		}
	}
	return e.detection.BaseScore
}

func (e *RuleEngine) hasMarker(upper string) bool {
	for _, m := range e.detection.Markers {
		if m != "" && strings.Contains(upper, upperASCII(m)) {
			return true
		}
	}
	return false
}

func (e *RuleEngine) Extract(text string) ExtractionResult {
	res := ExtractionResult{
		LabValues:     []Candidate{},
		EngineID:      e.info.ID,
		EngineVersion: e.info.Version,
		ExtractedAt:   e.now().UTC(),
	}
	doc := Normalize(text)
	if strings.TrimSpace(doc) == "" {
		return res
	}

	spans := e.nameSpans(doc)
	var found []Candidate
	for _, cat := range e.vocab.Categories() {
		sec, hasSec := e.section(doc, cat.Name)
		for _, name := range cat.Tests {
			m, ok := e.locate(doc, name, sec, hasSec, spans)
			if !ok {
				continue
			}
			c, _, ok := e.recon.ReconstructAt(doc, m, name)
			if !ok {
				continue
			}
			c.TestName = name
			c.Category = cat.Name
			c.SourcePosition = m.Anchor
			c.Confidence = Score(c)
			found = append(found, c)
		}
	}

	if merged := Merge(found, e.vocab.CanonicalKey); len(merged) > 0 {
		res.LabValues = merged
	}
	res.OverallConfidence = overallConfidence(res.LabValues)
	res.Summary = Summarize(res.LabValues, e.vocab.spec.Critical)

	lab := ""
	if e.laboratory != "" && e.hasMarker(upperASCII(doc)) {
		lab = e.laboratory
	}
	if meta := ExtractMetadata(doc, lab); !meta.IsZero() {
		res.Report = &meta
	}
	return res
}

func (e *RuleEngine) section(doc, category string) (Section, bool) {
	spec, ok := e.sections[category]
	if !ok {
		return Section{}, false
	}
	sec, ok := ExtractSection(doc, spec.Start, spec.End)
	sec.Name = category
	return sec, ok
}

type nameSpan struct {
	key string
	Match
}

// nameSpans lists every exact occurrence of every known test name.
func (e *RuleEngine) nameSpans(doc string) []nameSpan {
	var out []nameSpan
	for _, n := range e.vocab.testNames {
		key := normalizePhrase(n)
		for _, m := range e.locator.LocateAll(doc, n) {
			out = append(out, nameSpan{key: key, Match: m})
		}
	}
	return out
}

// shadowed reports whether m lies inside an occurrence of a longer known
// name, such as "PROTEIN" inside "C. REACTIVE PROTEIN".
func shadowed(m Match, key string, spans []nameSpan) bool {
	for _, s := range spans {
		if s.key == key {
			continue
		}
		if s.Pos <= m.Pos && m.End <= s.End && s.End-s.Pos > m.End-m.Pos {
			return true
		}
	}
	return false
}

// locate picks the first unshadowed exact occurrence of name, preferring one
// inside the category's section. Without any exact occurrence it falls back
// to the in-order word search.
func (e *RuleEngine) locate(doc, name string, sec Section, hasSec bool, spans []nameSpan) (Match, bool) {
	key := normalizePhrase(name)
	var exact []Match
	for _, s := range spans {
		if s.key == key {
			exact = append(exact, s.Match)
		}
	}

	var first *Match
	for i := range exact {
		m := exact[i]
		if shadowed(m, key, spans) {
			continue
		}
		if hasSec && m.Pos >= sec.Start && m.End <= sec.End {
			return m, true
		}
		if first == nil {
			first = &exact[i]
		}
	}
	if first != nil {
		return *first, true
	}
	if len(exact) > 0 {
		return Match{}, false
	}

	canon := e.vocab.CanonicalKey(name)
	if hasSec {
		accept := func(words []span) bool { return !crossesOtherName(words, sec.Start, canon, spans, e.vocab) }
		if m, ok := locateFuzzy(sec.Text, name, accept); ok {
			m.Pos += sec.Start
			m.End += sec.Start
			m.Anchor += sec.Start
			return m, true
		}
	}
	accept := func(words []span) bool { return !crossesOtherName(words, 0, canon, spans, e.vocab) }
	return locateFuzzy(doc, name, accept)
}

// crossesOtherName reports whether an approximate match is really made of
// other tests' text: a matched word lies inside an exact occurrence of a
// different test, or a different test begins between the first and the last
// matched word. offset shifts words into document coordinates.
func crossesOtherName(words []span, offset int, canon string, spans []nameSpan, vocab *Vocabulary) bool {
	first := words[0].start + offset
	last := words[len(words)-1].start + offset
	for _, s := range spans {
		if vocab.CanonicalKey(s.key) == canon {
			continue
		}
		if s.Pos > first && s.Pos < last {
			return true
		}
		for _, w := range words {
			if s.Pos <= w.start+offset && w.end+offset <= s.End {
				return true
			}
		}
	}
	return false
}
