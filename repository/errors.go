package repository

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-entity-repository/events"
)

const (
	TextCodeNilEntity    = "NIL_ENTITY"
	TextCodeNilCriteria  = "NIL_CRITERIA"
	TextCodeInvalidPage  = "INVALID_PAGE"
	TextCodeInvalidBatch = "INVALID_BATCH"
)

func invalidArgument(code, msg string) error {
	return goerrors.New(msg, goerrors.CategoryBadInput).WithTextCode(code)
}

func errNilEntity(op string) error {
	return invalidArgument(TextCodeNilEntity, op+": entity must not be nil")
}

func errNilInBatch(op string, index int) error {
	return invalidArgument(TextCodeInvalidBatch, fmt.Sprintf("%s: entity at index %d is nil", op, index))
}

// IsInvalidArgument reports whether err was caused by a bad call argument.
func IsInvalidArgument(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryBadInput)
}

// PublishError reports a notification failure after the mutation committed.
// Entities before Index were notified, the rest were not.
type PublishError struct {
	Kind   events.Kind
	Index  int
	Entity any
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("repository: notify %s at index %d: %v", e.Kind, e.Index, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
