// Package parser turns raw document bytes plus a declared file type into
// plain text. It is a leaf collaborator: all pipeline sequencing and
// failure policy live in the orchestrator.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(_ context.Context, data []byte, fileType string) (string, error) {
	switch normalizeFileType(fileType) {
	case "pdf":
		return parsePDF(data)
	case "xlsx":
		return parseXLSX(data)
	case "txt", "md", "markdown", "csv", "log":
		return parsePlainText(data)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse document",
			fmt.Errorf("unsupported file type %q", fileType))
	}
}

func parsePlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse document",
			errors.New("content is not valid UTF-8 text"))
	}
	return strings.TrimSpace(string(data)), nil
}

// normalizeFileType accepts both bare extensions ("pdf") and MIME types
// ("application/pdf"), since upload clients declare either.
func normalizeFileType(fileType string) string {
	t := strings.ToLower(strings.TrimSpace(fileType))
	t = strings.TrimPrefix(t, ".")

	switch t {
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "text/plain":
		return "txt"
	case "text/markdown":
		return "md"
	case "text/csv":
		return "csv"
	}
	return t
}
