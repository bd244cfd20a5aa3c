package model

import "strings"

// NormalizedText is the output of text normalization for one wish
type NormalizedText struct {
	Original string
	Tokens   []string
	Language string // ISO 639-1, empty when undetermined

	// Degenerate is set when nothing remains after normalization. Such texts
	// still flow downstream and are counted on the run record.
	Degenerate bool
}

// Text joins tokens with a single space
func (n *NormalizedText) Text() string {
	return strings.Join(n.Tokens, " ")
}

// EmbeddingInput returns the text sent to the embedding model. Degenerate
// texts fall back to the trimmed original so that every item has input.
func (n *NormalizedText) EmbeddingInput() string {
	if text := n.Text(); text != "" {
		return text
	}
	return strings.ToLower(strings.TrimSpace(n.Original))
}
