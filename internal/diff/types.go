// File path: internal/diff/types.go
package diff

// Kind classifies a detected difference.
type Kind string

const (
	KindAdded    Kind = "added"
	KindRemoved  Kind = "removed"
	KindModified Kind = "modified"
)

// Enrichment is optional annotation attached to a record after comparison by
// an external provider. A nil pointer means "not requested" or "unavailable".
type Enrichment struct {
	Provider string `json:"provider"`
	Text     string `json:"text"`
}

// ChangeRecord is one atomic difference between two normalized texts. Kind
// determines which of SourceText/TargetText is populated: Added carries only
// target text, Removed only source text, Modified both.
type ChangeRecord struct {
	Kind          Kind        `json:"kind"`
	SourceText    string      `json:"source_text,omitempty"`
	TargetText    string      `json:"target_text,omitempty"`
	ContextBefore string      `json:"context_before,omitempty"`
	ContextAfter  string      `json:"context_after,omitempty"`
	SourceLine    int         `json:"source_line,omitempty"`
	TargetLine    int         `json:"target_line,omitempty"`
	Similarity    float64     `json:"similarity_score"`
	Proof         string      `json:"proof"`
	Enrichment    *Enrichment `json:"enrichment,omitempty"`
}

// Summary aggregates a comparison run.
type Summary struct {
	Added                int     `json:"added"`
	Removed              int     `json:"removed"`
	Modified             int     `json:"modified"`
	SimilarityPercentage float64 `json:"similarity_percentage"`
	SourceLines          int     `json:"source_lines"`
	TargetLines          int     `json:"target_lines"`
}

// TotalChanges returns the number of change records behind the summary.
func (s Summary) TotalChanges() int {
	return s.Added + s.Removed + s.Modified
}

// Options tunes a comparison run.
type Options struct {
	// ContextLines is the maximum number of unchanged lines captured on each
	// side of a change. Values below zero fall back to the default.
	ContextLines int
}

// DefaultContextLines is the context window used when none is requested.
const DefaultContextLines = 2
