// Package nlp provides the word tokenization the player resolver relies on.
package nlp

import (
	"unicode"

	"github.com/jdkato/prose/v2"
)

// Token is a single word or punctuation mark.
type Token struct {
	Text  string
	Alpha bool // every rune is a letter
}

// Tokenizer splits free text into tokens.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// ProseTokenizer tokenizes with prose. Tagging, segmentation and entity
// extraction are disabled; only the tokenizer runs. Safe for concurrent use.
type ProseTokenizer struct{}

// NewProseTokenizer returns the default tokenizer.
func NewProseTokenizer() *ProseTokenizer {
	return &ProseTokenizer{}
}

func (ProseTokenizer) Tokenize(text string) []Token {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil
	}
	raw := doc.Tokens()
	tokens := make([]Token, 0, len(raw))
	for _, tok := range raw {
		tokens = append(tokens, Token{Text: tok.Text, Alpha: IsAlpha(tok.Text)})
	}
	return tokens
}

// IsAlpha reports whether s is non-empty and made only of letters.
func IsAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
