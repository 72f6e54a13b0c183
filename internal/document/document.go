// File path: internal/document/document.go
package document

import (
	"strings"
)

// Metadata describes the converted document.
type Metadata struct {
	PageCount int `json:"page_count"`
	WordCount int `json:"word_count"`
	ByteSize  int `json:"byte_size"`
}

// NormalizedText is the line-oriented representation of a document,
// independent of its original format. It is produced once by a Converter and
// never mutated afterwards.
type NormalizedText struct {
	Source string   `json:"source"`
	Lines  []string `json:"lines"`
	Meta   Metadata `json:"meta"`
}

// LineCount returns the number of normalized lines.
func (n *NormalizedText) LineCount() int {
	if n == nil {
		return 0
	}
	return len(n.Lines)
}

func countWords(lines []string) int {
	total := 0
	for _, line := range lines {
		total += len(strings.Fields(line))
	}
	return total
}
