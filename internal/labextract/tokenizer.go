package labextract

import (
	"iter"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a candidate phrase or value and its byte offset in the tokenized
// text.
type Token struct {
	Text   string
	Offset int
}

// maxFreeWords stops phrases that are not vocabulary prefixes from growing
// across ordinary text.
const maxFreeWords = 3

var (
	rangeAtStart     = regexp.MustCompile(`^` + rangeExpr)
	bareRangeAtStart = regexp.MustCompile(`^(?:` + numberExpr + `\s*%?` + dashExpr + numberExpr + `\s*%?)`)
	numberWithSuffix = regexp.MustCompile(`^(` + numberExpr + `)(\S+)$`)
	nameWord         = regexp.MustCompile(`^[A-Z][A-Z.]+$`)
)

// Tokenizer splits windows into tokens using one vocabulary. It keeps no
// state between calls.
type Tokenizer struct {
	vocab *Vocabulary
}

func NewTokenizer(vocab *Vocabulary) *Tokenizer {
	return &Tokenizer{vocab: vocab}
}

// Tokenize collects Tokens(text).
func (t *Tokenizer) Tokenize(text string) []Token {
	return slices.Collect(t.Tokens(text))
}

// Tokens returns a lazy sequence of tokens. Ranges are recognized on the
// contiguous substring so their ends never surface as separate numbers.
// Other phrases grow word by word while they remain a prefix of a known
// test name or text result.
func (t *Tokenizer) Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		words := splitWords(text)
		for i := 0; i < len(words); {
			w := words[i]
			word := text[w.start:w.end]

			if startsRange(word) {
				if j, ok := t.rangeEnd(text, words, i); ok {
					if !yield(Token{Text: text[w.start:words[j].end], Offset: w.start}) {
						return
					}
					i = j + 1
					continue
				}
			}

			if startsWithDigit(word) {
				if m := numberWithSuffix.FindStringSubmatch(word); m != nil && t.vocab.IsUnit(m[2]) {
					if !yield(Token{Text: m[1], Offset: w.start}) {
						return
					}
					if !yield(Token{Text: m[2], Offset: w.start + len(m[1])}) {
						return
					}
				} else if !yield(Token{Text: word, Offset: w.start}) {
					return
				}
				i++
				continue
			}

			j := t.growPhrase(text, words, i)
			if !yield(Token{Text: text[w.start:words[j].end], Offset: w.start}) {
				return
			}
			i = j + 1
		}
	}
}

// rangeEnd returns the index of the word a range starting at words[i] ends
// on. A range must end exactly at a word boundary.
func (t *Tokenizer) rangeEnd(text string, words []span, i int) (int, bool) {
	start := words[i].start
	for _, re := range []*regexp.Regexp{rangeAtStart, bareRangeAtStart} {
		loc := re.FindStringIndex(text[start:])
		if loc == nil {
			continue
		}
		end := start + len(strings.TrimRightFunc(text[start:start+loc[1]], unicode.IsSpace))
		for j := i; j < len(words) && words[j].start < end; j++ {
			if words[j].end == end {
				return j, true
			}
		}
	}
	return 0, false
}

// growPhrase returns the index of the last word of the phrase starting at
// words[i].
func (t *Tokenizer) growPhrase(text string, words []span, i int) int {
	j := i
	for j+1 < len(words) {
		next := text[words[j+1].start:words[j+1].end]
		if startsWithDigit(next) || startsRange(next) || t.vocab.IsUnit(next) {
			break
		}
		if strings.ContainsRune(text[words[j].end:words[j+1].start], '\n') {
			break
		}
		current := text[words[i].start:words[j].end]
		if t.vocab.IsPhrasePrefix(current + " " + next) {
			j++
			continue
		}
		if j-i+1 < maxFreeWords &&
			!t.vocab.IsPhrasePrefix(current) && !t.vocab.IsPhrasePrefix(next) &&
			t.isNameWord(text[words[j].start:words[j].end]) && t.isNameWord(next) {
			j++
			continue
		}
		break
	}
	return j
}

func (t *Tokenizer) isNameWord(w string) bool {
	return nameWord.MatchString(w) && !flagShape.MatchString(w) &&
		!t.vocab.IsTextResult(w) && !t.vocab.IsUnit(w)
}

type span struct{ start, end int }

func splitWords(text string) []span {
	var out []span
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, span{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, span{start, len(text)})
	}
	return out
}

func startsWithDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r >= '0' && r <= '9'
}

func startsRange(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return (r >= '0' && r <= '9') || strings.ContainsRune("<>≤≥", r)
}
