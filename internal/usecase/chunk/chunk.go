// Package chunk splits extracted text into overlapping windows for
// embedding, word-counted by default and token-counted when a tokenizer is
// supplied.
package chunk

import "strings"

// Words splits text into overlapping chunks of chunkSize whitespace-
// delimited tokens, advancing by chunkSize-chunkOverlap tokens each step.
// If chunkOverlap is not smaller than chunkSize, it falls back to a quarter
// of chunkSize, mirroring the defensive clamp the original chunker applies.
func Words(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
		if chunkOverlap < 0 {
			chunkOverlap = 0
		}
	}

	tokens := strings.Fields(text)
	var chunks []string
	start := 0
	for start < len(tokens) {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunkTokens := tokens[start:end]
		if len(chunkTokens) == 0 {
			break
		}
		chunks = append(chunks, strings.Join(chunkTokens, " "))
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
