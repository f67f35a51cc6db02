package regulation

import (
	"context"

	dErrors "urbacert/pkg/domain-errors"
)

// Excerpt is one canonical regulation passage for a zoning code.
type Excerpt struct {
	ZoneCode string
	Article  string
	Content  string
}

// Index is the canonical regulation text collaborator, keyed by commune and
// zoning code. Implementations return ErrNotFound when no passage exists for
// the code; any other error is a lookup failure.
type Index interface {
	FindExcerpts(ctx context.Context, insee, code string) ([]Excerpt, error)
}

// ErrNotFound signals that the index holds no passage for the code.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "no regulation excerpt for code")
