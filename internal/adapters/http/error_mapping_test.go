package httpadapter

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/ragline/knowledge-ingest/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("bad")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrDocumentNotFound, "op", errors.New("gone")), http.StatusNotFound},
		{domain.WrapError(domain.ErrFileNotFound, "op", errors.New("gone")), http.StatusNotFound},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("busy")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", domain.ErrInvalidInput), http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Errorf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
