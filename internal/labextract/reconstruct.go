package labextract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// windowBefore and windowAfter bound the text handed to reconstruction
	// around a located name.
	windowBefore = 100
	windowAfter  = 150

	warnMissingUnit = "missing unit for numeric result"
	warnFuzzyMatch  = "test name located by approximate match"
)

var numberInText = regexp.MustCompile(numberExpr)

// Reconstructor assembles candidates from the text around a located test
// name. Registered patterns are tried first in order; the token-based
// algorithm is the catch-all.
type Reconstructor struct {
	vocab      *Vocabulary
	tokenizer  *Tokenizer
	classifier *Classifier
	locator    *Locator
	patterns   []Pattern
	compiled   map[string][]compiledPattern
}

// NewReconstructor validates patterns and compiles them for every known test
// name of vocab.
func NewReconstructor(vocab *Vocabulary, patterns []Pattern) (*Reconstructor, error) {
	r := &Reconstructor{
		vocab:      vocab,
		tokenizer:  NewTokenizer(vocab),
		classifier: NewClassifier(vocab),
		locator:    NewLocator(vocab.TestNames()),
		patterns:   append([]Pattern(nil), patterns...),
		compiled:   make(map[string][]compiledPattern),
	}
	for _, p := range patterns {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	for _, name := range vocab.TestNames() {
		cps, err := r.compileFor(name)
		if err != nil {
			return nil, err
		}
		r.compiled[normalizePhrase(name)] = cps
	}
	return r, nil
}

func (r *Reconstructor) compileFor(name string) ([]compiledPattern, error) {
	var out []compiledPattern
	for _, p := range r.patterns {
		if !p.Applies(name) {
			continue
		}
		cp, ok, err := compilePattern(p, name, r.vocab)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *Reconstructor) patternsFor(name string) []compiledPattern {
	if cps, ok := r.compiled[normalizePhrase(name)]; ok {
		return cps
	}
	cps, err := r.compileFor(name)
	if err != nil {
		return nil
	}
	return cps
}

// Reconstruct builds a candidate from a window of text. When hint names a
// test found in the window the layout patterns registered for it are tried
// first.
func (r *Reconstructor) Reconstruct(window, hint string) (Candidate, bool) {
	if hint != "" {
		for _, m := range r.locator.LocateAll(window, hint) {
			if c, _, ok := r.matchPatterns(window, m, hint); ok {
				c.TestName = hint
				return c, true
			}
		}
	}
	return r.reconstructTokens(window, hint)
}

// ReconstructAt builds a candidate for name located at m in the full
// document text. Patterns run against the document around an exact match.
// The token algorithm runs on the text from the name up to the next known
// test name, and when that holds no result, on the whole row from its start.
func (r *Reconstructor) ReconstructAt(text string, m Match, name string) (Candidate, string, bool) {
	if !m.Fuzzy {
		if c, id, ok := r.matchPatterns(text, m, name); ok {
			c.TestName = name
			return c, id, true
		}
	}
	start := m.Anchor
	end := min(len(text), start+len(name)+windowAfter)
	if next := r.nextName(text, m.End, end, name); next >= 0 {
		end = next
	}
	c, ok := r.reconstructTokens(text[start:end], name)
	if !ok {
		// The row may print its range and result before the name.
		c, ok = r.reconstructTokens(text[r.rowStart(text, start, name):end], name)
	}
	if !ok {
		return Candidate{}, "", false
	}
	c.TestName = name
	if m.Fuzzy {
		c.Warnings = append(c.Warnings, warnFuzzyMatch)
	}
	return c, "", true
}

func (r *Reconstructor) matchPatterns(text string, m Match, name string) (Candidate, string, bool) {
	for _, cp := range r.patternsFor(name) {
		if c, ok := cp.match(text, m.Pos, m.End); ok {
			addWarnings(&c)
			return c, cp.id, true
		}
	}
	return Candidate{}, "", false
}

// nextName returns the offset of the first other known test name in
// text[from:to], or -1.
func (r *Reconstructor) nextName(text string, from, to int, self string) int {
	if from >= to {
		return -1
	}
	selfKey := normalizePhrase(self)
	best := -1
	for _, n := range r.vocab.testNames {
		if normalizePhrase(n) == selfKey {
			continue
		}
		if loc := r.locator.pattern(n).FindStringIndex(text[from:to]); loc != nil {
			if best < 0 || from+loc[0] < best {
				best = from + loc[0]
			}
		}
	}
	return best
}

// rowStart returns where the row holding the name at pos begins: the start
// of its line, at most windowBefore bytes back and never before the end of
// another known test name.
func (r *Reconstructor) rowStart(text string, pos int, self string) int {
	start := max(0, pos-windowBefore)
	for start < pos && !utf8.RuneStart(text[start]) {
		start++
	}
	if nl := strings.LastIndexByte(text[start:pos], '\n'); nl >= 0 {
		start += nl + 1
	}
	if prev := r.prevNameEnd(text, start, pos, self); prev > start {
		start = prev
	}
	return start
}

// prevNameEnd returns the end of the last other known test name in
// text[from:to], or -1.
func (r *Reconstructor) prevNameEnd(text string, from, to int, self string) int {
	if from >= to {
		return -1
	}
	selfKey := normalizePhrase(self)
	last := -1
	for _, n := range r.vocab.testNames {
		if normalizePhrase(n) == selfKey {
			continue
		}
		for _, loc := range r.locator.pattern(n).FindAllStringIndex(text[from:to], -1) {
			last = max(last, from+loc[1])
		}
	}
	return last
}

// reconstructTokens is the order-independent algorithm: classify every
// token, take the longest test name, the first result that is not part of a
// range and the first unit, range and flag.
func (r *Reconstructor) reconstructTokens(window, hint string) (Candidate, bool) {
	var names, numbers, texts, units, ranges, flags []string
	for tok := range r.tokenizer.Tokens(window) {
		switch r.classifier.Classify(tok.Text) {
		case TokenTestName:
			names = append(names, tok.Text)
		case TokenNumericResult:
			numbers = append(numbers, tok.Text)
		case TokenTextResult:
			texts = append(texts, tok.Text)
		case TokenUnit:
			units = append(units, tok.Text)
		case TokenReferenceRange:
			ranges = append(ranges, tok.Text)
		case TokenFlag:
			flags = append(flags, tok.Text)
		}
	}

	var c Candidate
	for _, n := range names {
		if len(n) > len(c.TestName) {
			c.TestName = n
		}
	}
	if c.TestName == "" {
		c.TestName = strings.TrimSpace(hint)
	}
	if c.TestName == "" {
		return Candidate{}, false
	}
	c.TestName = strings.Join(strings.Fields(c.TestName), " ")

	for _, n := range numbers {
		if !partOfRange(n, ranges) {
			c.Value = n
			break
		}
	}
	if c.Value == "" && len(numbers) > 0 {
		c.Value = numbers[0]
	}
	if c.Value == "" && len(texts) > 0 {
		c.Value = strings.Join(strings.Fields(texts[0]), " ")
	}
	if c.Value == "" {
		return Candidate{}, false
	}

	if len(units) > 0 {
		c.Unit = units[0]
	}
	if len(ranges) > 0 {
		c.ReferenceRange = strings.Join(strings.Fields(ranges[0]), " ")
	}
	if len(flags) > 0 {
		c.Flag = parseFlag(flags[0])
	}
	addWarnings(&c)
	return c, true
}

// partOfRange reports whether n is printed as one of the numbers of a range.
func partOfRange(n string, ranges []string) bool {
	for _, rg := range ranges {
		for _, x := range numberInText.FindAllString(rg, -1) {
			if x == n {
				return true
			}
		}
	}
	return false
}

func addWarnings(c *Candidate) {
	if c.Unit == "" && numericShape.MatchString(c.Value) {
		c.Warnings = append(c.Warnings, warnMissingUnit)
	}
}

// String renders a candidate on one line for logs and the CLI.
func (c Candidate) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %s", c.TestName, c.Value)
	if c.Unit != "" {
		b.WriteString(" " + c.Unit)
	}
	if c.ReferenceRange != "" {
		fmt.Fprintf(&b, " [%s]", c.ReferenceRange)
	}
	if c.Flag != FlagNone {
		fmt.Fprintf(&b, " (%s)", c.Flag)
	}
	return b.String()
}
