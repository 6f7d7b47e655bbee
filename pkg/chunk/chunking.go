package chunk

import (
	"strings"
)

// SplitParagraphIntoChunks splits a paragraph into chunks of at most
// maxChunkSize bytes without breaking words. A single word longer than
// maxChunkSize becomes its own chunk.
func SplitParagraphIntoChunks(paragraph string, maxChunkSize int) []string {
	paragraph = strings.TrimSpace(paragraph)
	if paragraph == "" {
		return nil
	}
	if maxChunkSize <= 0 || len(paragraph) <= maxChunkSize {
		return []string{paragraph}
	}

	var chunks []string
	var current strings.Builder

	for _, word := range strings.Fields(paragraph) {
		if current.Len() > 0 && current.Len()+len(word)+1 > maxChunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() == 0 && len(word) > maxChunkSize {
			chunks = append(chunks, word)
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// SplitTextIntoChunks splits a whole document. Paragraphs (separated by a
// blank line) are packed together while they fit in maxChunkSize, oversized
// paragraphs are split on word boundaries.
func SplitTextIntoChunks(text string, maxChunkSize int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if maxChunkSize > 0 && len(p) > maxChunkSize {
			flush()
			chunks = append(chunks, SplitParagraphIntoChunks(p, maxChunkSize)...)
			continue
		}

		if current.Len() > 0 && maxChunkSize > 0 && current.Len()+len(p)+2 > maxChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}
