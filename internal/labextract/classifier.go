package labextract

import (
	"regexp"
	"strings"
	"unicode"
)

// TokenType is the semantic role of a token.
type TokenType int

const (
	TokenUnknown TokenType = iota
	TokenTestName
	TokenNumericResult
	TokenTextResult
	TokenUnit
	TokenReferenceRange
	TokenFlag
)

var tokenTypeNames = map[TokenType]string{
	TokenUnknown:        "UNKNOWN",
	TokenTestName:       "TEST_NAME",
	TokenNumericResult:  "NUMERIC_RESULT",
	TokenTextResult:     "TEXT_RESULT",
	TokenUnit:           "UNIT",
	TokenReferenceRange: "REFERENCE_RANGE",
	TokenFlag:           "FLAG",
}

func (t TokenType) String() string {
	if s, ok := tokenTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

const (
	numberExpr = `\d+(?:\.\d+)?`
	dashExpr   = `\s*[-–—]\s*`
	// rangeExpr covers "5.0 - 15.0", "14%-86% (1.5-9.5)" and "<5".
	rangeExpr = `(?:[<>≤≥]=?\s*` + numberExpr + `|` + numberExpr + `\s*%?` + dashExpr + numberExpr + `\s*%?(?:\s*\([^()\n]*\))?)`
)

var (
	numericShape = regexp.MustCompile(`^` + numberExpr + `$`)
	rangeShape   = regexp.MustCompile(`^` + rangeExpr + `$`)
	flagShape    = regexp.MustCompile(`(?i)^(?:H|L|HIGH|LOW)$`)
	nameShape    = regexp.MustCompile(`^[A-Z][A-Z\s.]+$`)
)

// Classifier assigns token types using one vocabulary.
type Classifier struct {
	vocab *Vocabulary
}

func NewClassifier(vocab *Vocabulary) *Classifier {
	return &Classifier{vocab: vocab}
}

// Classify returns the type of a single token. The checks run in a fixed
// order and the first match wins, so a bare "L" is a flag and a number is
// never a test name.
func (c *Classifier) Classify(token string) TokenType {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return TokenUnknown
	}
	switch {
	case numericShape.MatchString(tok):
		return TokenNumericResult
	case c.vocab.IsTextResult(tok):
		return TokenTextResult
	case flagShape.MatchString(tok):
		return TokenFlag
	case c.isUnit(tok):
		return TokenUnit
	case rangeShape.MatchString(tok):
		return TokenReferenceRange
	case c.isTestName(tok):
		return TokenTestName
	case nameShape.MatchString(tok) && len(strings.Fields(tok)) >= 2:
		return TokenTestName
	}
	return TokenUnknown
}

// isUnit matches a known unit exactly, or a single non-range word that
// embeds one next to unit punctuation, such as "(g/dL)" or "10^9/L.".
func (c *Classifier) isUnit(tok string) bool {
	if c.vocab.IsUnit(tok) {
		return true
	}
	if strings.ContainsFunc(tok, unicode.IsSpace) || rangeShape.MatchString(tok) {
		return false
	}
	if !strings.ContainsFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) }) {
		return false
	}
	for _, u := range c.vocab.spec.Units {
		if strings.Contains(tok, u) {
			return true
		}
	}
	return false
}

// isTestName reports whether tok contains a known test name, or is a
// word-aligned part of one with at least two letters.
func (c *Classifier) isTestName(tok string) bool {
	upper := normalizePhrase(tok)
	letters := 0
	for _, r := range upper {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	padded := " " + upper + " "
	for _, name := range c.vocab.testNames {
		n := normalizePhrase(name)
		if strings.Contains(upper, n) {
			return true
		}
		if letters >= 2 && strings.Contains(" "+n+" ", padded) {
			return true
		}
	}
	return false
}

// parseFlag maps a flag token onto H or L.
func parseFlag(tok string) Flag {
	switch strings.ToUpper(strings.TrimSpace(tok)) {
	case "H", "HIGH":
		return FlagHigh
	case "L", "LOW":
		return FlagLow
	}
	return FlagNone
}
