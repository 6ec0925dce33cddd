package archive

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is wrapped by every store sentinel that reports a missing row.
var ErrNotFound = errors.New("not found")

// Reference identifies a live entity that still points at an archivable one.
type Reference struct {
	Kind string `json:"kind"`
	ID   int    `json:"id"`
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// ConflictError is returned when an entity cannot be archived because other
// live entities reference it.
type ConflictError struct {
	Kind       string
	ID         int
	References []Reference
}

func (e *ConflictError) Error() string {
	refs := make([]string, 0, len(e.References))
	for _, r := range e.References {
		refs = append(refs, r.String())
	}
	return fmt.Sprintf("%s %d is still referenced by %s", e.Kind, e.ID, strings.Join(refs, ", "))
}

// IsConflict unwraps err into a ConflictError.
func IsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
