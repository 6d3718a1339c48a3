package labextract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SlotKind names one field of a layout template.
type SlotKind string

const (
	SlotResult    SlotKind = "result"    // numeric result
	SlotText      SlotKind = "text"      // qualitative result from the vocabulary
	SlotEnum      SlotKind = "enum"      // per-test enumerated value
	SlotUnit      SlotKind = "unit"      // printed unit
	SlotPercent   SlotKind = "percent"   // literal "%" recorded as the unit
	SlotRange     SlotKind = "range"     // reference range
	SlotFlag      SlotKind = "flag"      // H / L marker
	SlotCount     SlotKind = "count"     // "2 - 4" cell count recorded as the result
	SlotHPF       SlotKind = "hpf"       // "/H.P.F" recorded as the unit
	SlotCompanion SlotKind = "companion" // parenthesised secondary value, ignored
	SlotGap       SlotKind = "gap"       // up to Max characters of anything
)

// Slot is one element of a layout template. Values narrows a text or enum
// slot to a fixed list.
type Slot struct {
	Kind     SlotKind `json:"kind"`
	Optional bool     `json:"optional,omitempty"`
	Max      int      `json:"max,omitempty"`
	Values   []string `json:"values,omitempty"`
}

// Pattern describes one lab layout: the slots printed before the test name
// and the slots printed after it. A pattern applies to names containing any
// of Contains or equal to any of Equals; with neither set it applies to every
// test.
type Pattern struct {
	ID       string   `json:"id"`
	Contains []string `json:"contains,omitempty"`
	Equals   []string `json:"equals,omitempty"`
	Before   []Slot   `json:"before,omitempty"`
	After    []Slot   `json:"after,omitempty"`
}

// Applies reports whether the pattern is registered for name.
func (p Pattern) Applies(name string) bool {
	if len(p.Contains) == 0 && len(p.Equals) == 0 {
		return true
	}
	upper := normalizePhrase(name)
	for _, eq := range p.Equals {
		if upper == normalizePhrase(eq) {
			return true
		}
	}
	for _, sub := range p.Contains {
		if strings.Contains(upper, strings.ToUpper(sub)) {
			return true
		}
	}
	return false
}

// Validate checks the template for unknown slots and missing fields.
func (p Pattern) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pattern id is required")
	}
	if len(p.Before) == 0 && len(p.After) == 0 {
		return fmt.Errorf("pattern %s: no slots", p.ID)
	}
	hasResult := false
	for _, s := range append(append([]Slot{}, p.Before...), p.After...) {
		if _, ok := slotFields[s.Kind]; !ok {
			return fmt.Errorf("pattern %s: unknown slot kind %q", p.ID, s.Kind)
		}
		if s.Kind == SlotGap && s.Max <= 0 {
			return fmt.Errorf("pattern %s: gap slot needs a positive max", p.ID)
		}
		if slotFields[s.Kind] == fieldResult && !s.Optional {
			hasResult = true
		}
	}
	if !hasResult {
		return fmt.Errorf("pattern %s: no required result slot", p.ID)
	}
	return nil
}

type field int

const (
	fieldNone field = iota
	fieldResult
	fieldUnit
	fieldRange
	fieldFlag
)

var slotFields = map[SlotKind]field{
	SlotResult:    fieldResult,
	SlotText:      fieldResult,
	SlotEnum:      fieldResult,
	SlotCount:     fieldResult,
	SlotUnit:      fieldUnit,
	SlotRange:     fieldRange,
	SlotFlag:      fieldFlag,
	SlotPercent:   fieldNone,
	SlotHPF:       fieldNone,
	SlotCompanion: fieldNone,
	SlotGap:       fieldNone,
}

var fixedUnits = map[SlotKind]string{
	SlotPercent: "%",
	SlotHPF:     "/H.P.F",
}

const (
	unitExpr      = `(?:\d+\^\d+)?[A-Za-zμµ%/(][\w^/%().μµ]*`
	countExpr     = `\d+` + dashExpr + `\d+|\d+`
	hpfExpr       = `/\s*H\.?\s*P\.?\s*F\.?`
	companionExpr = `\(\s*` + numberExpr + `\s*[^\s()]+\s*\)`
	flagExpr      = `HIGH|LOW|H|L`
	defaultReach  = 200
)

// compiledPattern is a Pattern bound to one test name.
type compiledPattern struct {
	id           string
	before       *regexp.Regexp
	after        *regexp.Regexp
	beforeFields []field
	afterFields  []field
	unit         string
	reach        int
}

// compilePattern binds p to a test name. It returns false when the pattern
// cannot serve the name, for example an enum slot without enumerated values.
func compilePattern(p Pattern, name string, vocab *Vocabulary) (compiledPattern, bool, error) {
	cp := compiledPattern{id: p.ID, reach: defaultReach}
	for _, s := range append(append([]Slot{}, p.Before...), p.After...) {
		if u, ok := fixedUnits[s.Kind]; ok {
			cp.unit = u
		}
		if s.Kind == SlotGap {
			cp.reach += s.Max
		}
	}

	frags := func(slots []Slot) ([]string, []field, bool) {
		out := make([]string, len(slots))
		var fields []field
		for i, s := range slots {
			expr, ok := slotExpr(s, name, vocab)
			if !ok {
				return nil, nil, false
			}
			if f := slotFields[s.Kind]; f != fieldNone {
				expr = "(" + expr + ")"
				fields = append(fields, f)
			} else {
				expr = "(?:" + expr + ")"
			}
			out[i] = expr
		}
		return out, fields, true
	}

	if len(p.Before) > 0 {
		exprs, fields, ok := frags(p.Before)
		if !ok {
			return cp, false, nil
		}
		var b strings.Builder
		b.WriteString(`(?i)(?:^|[^\w.])`)
		for i, s := range p.Before {
			next := SlotKind("")
			if i+1 < len(p.Before) {
				next = p.Before[i+1].Kind
			}
			part := exprs[i] + separator(s.Kind, next)
			if s.Optional {
				part = "(?:" + part + ")?"
			}
			b.WriteString(part)
		}
		b.WriteString(`$`)
		re, err := regexp.Compile(b.String())
		if err != nil {
			return cp, false, fmt.Errorf("pattern %s: compile before template: %w", p.ID, err)
		}
		cp.before, cp.beforeFields = re, fields
	}

	if len(p.After) > 0 {
		exprs, fields, ok := frags(p.After)
		if !ok {
			return cp, false, nil
		}
		var b strings.Builder
		b.WriteString(`(?i)^`)
		prev := SlotKind("")
		for i, s := range p.After {
			sep := separator(prev, s.Kind)
			if prev == "" {
				sep = `(?:\s*:\s*|\s+)`
				if s.Kind == SlotPercent || s.Kind == SlotGap {
					sep = `\s*`
				}
			}
			part := sep + exprs[i]
			if s.Optional {
				part = "(?:" + part + ")?"
			}
			b.WriteString(part)
			prev = s.Kind
		}
		b.WriteString(`(?:[^\w%]|$)`)
		re, err := regexp.Compile(b.String())
		if err != nil {
			return cp, false, fmt.Errorf("pattern %s: compile after template: %w", p.ID, err)
		}
		cp.after, cp.afterFields = re, fields
	}

	return cp, true, nil
}

// separator returns the whitespace expected between two adjacent slots. An
// empty kind stands for the test name.
func separator(a, b SlotKind) string {
	for _, k := range []SlotKind{a, b} {
		switch k {
		case SlotPercent, SlotFlag, SlotCompanion, SlotGap, SlotHPF:
			return `\s*`
		}
	}
	return `\s+`
}

func slotExpr(s Slot, name string, vocab *Vocabulary) (string, bool) {
	switch s.Kind {
	case SlotResult:
		return numberExpr, true
	case SlotText:
		if len(s.Values) > 0 {
			return alternation(s.Values)
		}
		return alternation(vocab.TextResults())
	case SlotEnum:
		if len(s.Values) > 0 {
			return alternation(s.Values)
		}
		return alternation(vocab.EnumeratedValues(name))
	case SlotUnit:
		return unitExpr, true
	case SlotPercent:
		return `%`, true
	case SlotRange:
		return rangeExpr, true
	case SlotFlag:
		return flagExpr, true
	case SlotCount:
		return countExpr, true
	case SlotHPF:
		return hpfExpr, true
	case SlotCompanion:
		return companionExpr, true
	case SlotGap:
		return fmt.Sprintf(`[\s\S]{0,%d}?`, s.Max), true
	}
	return "", false
}

// alternation quotes values longest first so "++" is tried before "+".
func alternation(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	sorted := append([]string(nil), values...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, v := range sorted {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(v), " ", `\s+`)
	}
	return strings.Join(quoted, "|"), true
}

// match applies the pattern around a located name spanning [pos, end).
func (cp compiledPattern) match(text string, pos, end int) (Candidate, bool) {
	var c Candidate
	c.Unit = cp.unit

	if cp.before != nil {
		lo := max(0, pos-cp.reach)
		m := cp.before.FindStringSubmatch(text[lo:pos])
		if m == nil {
			return Candidate{}, false
		}
		assign(&c, cp.beforeFields, m[1:])
	}
	if cp.after != nil {
		hi := min(len(text), end+cp.reach)
		m := cp.after.FindStringSubmatch(text[end:hi])
		if m == nil {
			return Candidate{}, false
		}
		assign(&c, cp.afterFields, m[1:])
	}
	if c.Value == "" {
		return Candidate{}, false
	}
	return c, true
}

func assign(c *Candidate, fields []field, groups []string) {
	for i, f := range fields {
		if i >= len(groups) {
			return
		}
		v := strings.Join(strings.Fields(groups[i]), " ")
		if v == "" {
			continue
		}
		switch f {
		case fieldResult:
			if c.Value == "" {
				c.Value = v
			}
		case fieldUnit:
			if c.Unit == "" {
				c.Unit = v
			}
		case fieldRange:
			if c.ReferenceRange == "" {
				c.ReferenceRange = v
			}
		case fieldFlag:
			if c.Flag == FlagNone {
				c.Flag = parseFlag(v)
			}
		}
	}
}
