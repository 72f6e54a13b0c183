// File path: internal/enrich/local.go
package enrich

import (
	"context"

	"docverge/internal/diff"
)

// LocalProvider is a deterministic stand-in used when no external provider is
// configured. It echoes the record's proof so the pipeline stays exercisable
// offline.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Annotate(ctx context.Context, rec diff.ChangeRecord, prompt string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rec.Proof == "" {
		return nil, ErrUnavailable
	}
	return &Result{Provider: l.Name(), Text: "[local-stub] " + rec.Proof}, nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
