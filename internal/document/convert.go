// File path: internal/document/convert.go
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docverge/internal/common"
)

// ErrMalformed marks input that can never convert successfully. Jobs fail
// immediately on this error instead of retrying.
var ErrMalformed = errors.New("malformed document")

// ConvertOptions controls optional conversion behaviour.
type ConvertOptions struct {
	ExtractTables bool
}

// Converter turns a raw document payload into normalized text.
type Converter interface {
	Convert(ctx context.Context, name string, data []byte, opts ConvertOptions) (*NormalizedText, error)
}

// Normalizer is the built-in Converter. Markdown files go through the
// goldmark AST; everything else is treated as plain text.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Convert(ctx context.Context, name string, data []byte, opts ConvertOptions) (*NormalizedText, error) {
	logger := common.Logger()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformed, name)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", ErrMalformed, name)
	}
	var (
		text *NormalizedText
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		text, err = convertMarkdown(name, data, opts)
	default:
		text, err = convertPlainText(name, data)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("document: converted", "source", name, "lines", len(text.Lines), "words", text.Meta.WordCount)
	return text, nil
}

func convertPlainText(name string, data []byte) (*NormalizedText, error) {
	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	return &NormalizedText{
		Source: name,
		Lines:  lines,
		Meta: Metadata{
			PageCount: 1,
			WordCount: countWords(lines),
			ByteSize:  len(data),
		},
	}, nil
}
