package labextract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// fuzzyWindow is the span in which all words of a name must appear in order.
	fuzzyWindow = 150
	// fuzzyTail stops the sliding window short of the end of the text.
	fuzzyTail = 20
	// minFuzzyWord drops short words ("OF", "NS") from the fuzzy search.
	minFuzzyWord = 3
)

// Match is a located test name. Pos and End bound an exact match. For a fuzzy
// match Pos is the start of the first window holding the name's words in
// order, Anchor is where the first of those words begins and End is where
// the last one ends; all are indicative only.
type Match struct {
	Pos    int
	End    int
	Anchor int
	Fuzzy  bool
}

// Locator finds test names in document text.
type Locator struct {
	patterns map[string]*regexp.Regexp
}

// NewLocator precompiles the phrase patterns of names. Names not given here
// are compiled on demand.
func NewLocator(names []string) *Locator {
	l := &Locator{patterns: make(map[string]*regexp.Regexp, len(names))}
	for _, n := range names {
		l.patterns[n] = regexp.MustCompile(phraseExpr(n))
	}
	return l
}

func (l *Locator) pattern(name string) *regexp.Regexp {
	if re, ok := l.patterns[name]; ok {
		return re
	}
	return regexp.MustCompile(phraseExpr(name))
}

// Locate returns the first exact match of name in text, falling back to the
// in-order word search when there is none. A missing name is reported with
// ok == false.
func (l *Locator) Locate(text, name string) (Match, bool) {
	if strings.TrimSpace(name) == "" {
		return Match{}, false
	}
	if loc := l.pattern(name).FindStringIndex(text); loc != nil {
		return Match{Pos: loc[0], End: loc[1], Anchor: loc[0]}, true
	}
	return locateFuzzy(text, name, nil)
}

// LocateAll returns every exact match of name in text.
func (l *Locator) LocateAll(text, name string) []Match {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	locs := l.pattern(name).FindAllStringIndex(text, -1)
	out := make([]Match, 0, len(locs))
	for _, loc := range locs {
		out = append(out, Match{Pos: loc[0], End: loc[1], Anchor: loc[0]})
	}
	return out
}

// phraseExpr builds a case-insensitive pattern for name in which whitespace
// runs match any whitespace, a period may be followed by optional space and
// alphanumeric edges sit on word boundaries.
func phraseExpr(name string) string {
	words := strings.Fields(name)
	var b strings.Builder
	b.WriteString(`(?i)`)
	if first, _ := utf8.DecodeRuneInString(name); isWordRune(first) {
		b.WriteString(`\b`)
	}
	for i, w := range words {
		if i > 0 {
			if strings.HasSuffix(words[i-1], ".") {
				b.WriteString(`\s*`)
			} else {
				b.WriteString(`\s+`)
			}
		}
		parts := strings.Split(w, ".")
		for k, p := range parts {
			if k > 0 {
				b.WriteString(`\.`)
				if k < len(parts)-1 || p != "" {
					b.WriteString(`\s*`)
				}
			}
			b.WriteString(regexp.QuoteMeta(p))
		}
	}
	if last, _ := utf8.DecodeLastRuneInString(strings.TrimSpace(name)); isWordRune(last) {
		b.WriteString(`\b`)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// locateFuzzy requires every word longer than two characters to occur in
// the text, then slides a fixed window until those words appear in order.
// A non-nil accept sees the spans of the words found in a window and may
// reject them, in which case the search resumes after that anchor.
func locateFuzzy(text, name string, accept func(words []span) bool) (Match, bool) {
	var words []string
	for _, w := range strings.Fields(upperASCII(name)) {
		if len(w) >= minFuzzyWord {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return Match{}, false
	}

	upper := upperASCII(text)
	for _, w := range words {
		if !strings.Contains(upper, w) {
			return Match{}, false
		}
	}

	for i := 0; i == 0 || i < len(upper)-fuzzyTail; i++ {
		next := strings.Index(upper[i:], words[0])
		if next < 0 {
			break
		}
		if next > fuzzyWindow-len(words[0]) {
			// No window before this one can hold the first word.
			i += next - (fuzzyWindow - len(words[0])) - 1
			continue
		}
		end := min(i+fuzzyWindow, len(upper))
		found, ok := inOrder(upper[i:end], words)
		if !ok {
			continue
		}
		for k := range found {
			found[k].start += i
			found[k].end += i
		}
		if accept != nil && !accept(found) {
			i = found[0].start
			continue
		}
		return Match{Pos: i, End: found[len(found)-1].end, Anchor: found[0].start, Fuzzy: true}, true
	}
	return Match{}, false
}

// inOrder reports whether words occur left to right in window and returns
// where each one was found.
func inOrder(window string, words []string) ([]span, bool) {
	out := make([]span, 0, len(words))
	idx := 0
	for _, w := range words {
		k := strings.Index(window[idx:], w)
		if k < 0 {
			return nil, false
		}
		out = append(out, span{start: idx + k, end: idx + k + len(w)})
		idx += k + len(w)
	}
	return out, true
}

// upperASCII upper-cases ASCII letters only so byte offsets are preserved.
func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
