package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// campusSynonyms folds common long forms onto the short forms used in the
// knowledge base. No value is itself a different key, so applying the table
// twice gives the same result as applying it once.
var campusSynonyms = map[string]string{
	"pendaftaran": "daftar",
	"penerimaan":  "terima",
	"pengumuman":  "umum",
	"mahasiswa":   "mhs",
	"kampus":      "kampus",
	"universitas": "univ",
	"fakultas":    "fak",
	"jurusan":     "jur",
	"program":     "prodi",
	"studi":       "prodi",
}

// QueryNormalizer canonicalizes user queries before embedding and cache lookup
type QueryNormalizer struct {
	synonyms map[string]string
}

// NewQueryNormalizer creates a normalizer with the campus synonym table
func NewQueryNormalizer() *QueryNormalizer {
	return &QueryNormalizer{synonyms: campusSynonyms}
}

// Normalize lowercases raw, splits it with the prose tokenizer, blanks out
// symbols inside each token and substitutes synonyms token by token. Dotted
// abbreviations such as "u.i.n." collapse to "uin". It never fails and is
// idempotent.
func (n *QueryNormalizer) Normalize(raw string) string {
	tokens := n.tokenize(strings.ToLower(raw))
	for i, tok := range tokens {
		if repl, ok := n.synonyms[tok]; ok {
			tokens[i] = repl
		}
	}

	return strings.Join(tokens, " ")
}

// keepQueryRune maps anything that is not a letter, digit, whitespace or
// Latin-1 Supplement / Latin Extended-A letter to a space.
func keepQueryRune(r rune) rune {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
		return r
	case r >= '\u00C0' && r <= '\u017F':
		return r
	default:
		return ' '
	}
}

var dottedAbbreviation = regexp.MustCompile(`^(?:\pL\.){2,}\pL?$`)

// tokenize splits text into word tokens. prose peels leading and trailing
// punctuation off each whitespace span and keeps dotted abbreviations whole;
// whatever symbols remain inside a token become separators.
func (n *QueryNormalizer) tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.Fields(strings.Map(keepQueryRune, text))
	}

	var tokens []string
	for _, tok := range doc.Tokens() {
		word := tok.Text
		if dottedAbbreviation.MatchString(word) {
			word = strings.ReplaceAll(word, ".", "")
		}
		tokens = append(tokens, strings.Fields(strings.Map(keepQueryRune, word))...)
	}
	return tokens
}
