// File path: internal/diff/citation.go
package diff

import "fmt"

// Proof builds the citation string for a record. It depends only on the kind,
// line numbers, and text spans, so a stored proof can always be regenerated
// from the record alone.
func Proof(rec ChangeRecord) string {
	switch rec.Kind {
	case KindAdded:
		return fmt.Sprintf("Added at line %d: '%s'", rec.TargetLine, rec.TargetText)
	case KindRemoved:
		return fmt.Sprintf("Removed at line %d: '%s'", rec.SourceLine, rec.SourceText)
	case KindModified:
		return fmt.Sprintf("Modified at line %d → %d: '%s' → '%s'", rec.SourceLine, rec.TargetLine, rec.SourceText, rec.TargetText)
	default:
		return ""
	}
}
