package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenChunker splits text into overlapping chunks counted in model tokens
// rather than whitespace words, for providers billed or limited by token
// count rather than word count.
type TokenChunker struct {
	enc *tiktoken.Tiktoken
}

// NewTokenChunker loads the named tiktoken encoding (e.g. "cl100k_base").
func NewTokenChunker(encoding string) (*TokenChunker, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("chunk: load tiktoken encoding %q: %w", encoding, err)
	}
	return &TokenChunker{enc: enc}, nil
}

// Chunk splits text into overlapping windows of chunkSize tokens, advancing
// by chunkSize-chunkOverlap tokens each step, same clamp rule as Words.
func (c *TokenChunker) Chunk(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
		if chunkOverlap < 0 {
			chunkOverlap = 0
		}
	}

	tokens := c.enc.Encode(text, nil, nil)
	var chunks []string
	start := 0
	for start < len(tokens) {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		if len(window) == 0 {
			break
		}
		chunks = append(chunks, c.enc.Decode(window))
		if end == len(tokens) {
			break
		}
		start = end - chunkOverlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
