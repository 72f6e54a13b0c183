// File path: internal/enrich/enrich.go
package enrich

import (
	"context"
	"errors"
	"os"
	"strings"

	"docverge/internal/common"
	"docverge/internal/diff"
)

// Result is the annotation a provider attaches to a change record.
type Result = diff.Enrichment

// ErrUnavailable signals that no provider capacity exists for the call. The
// record is left without enrichment; the job is never affected.
var ErrUnavailable = errors.New("enrichment unavailable")

// Provider annotates a single change record. Implementations must honor the
// context deadline; any error leaves the record's enrichment absent.
type Provider interface {
	Annotate(ctx context.Context, rec diff.ChangeRecord, prompt string) (*Result, error)
	Name() string
}

// NewProvider selects a provider from the environment: OpenAI when
// OPENAI_API_KEY is set, the local stub otherwise.
func NewProvider() Provider {
	logger := common.Logger()
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey != "" {
		logger.Info("enrich: OpenAI provider selected")
		return NewOpenAIProvider(apiKey)
	}
	logger.Warn("enrich: OPENAI_API_KEY not set; falling back to local provider")
	return NewLocalProvider()
}
