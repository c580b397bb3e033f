// types.go
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/segment"
)

const (
	// FailedLabel is shown in place of a name that could not be resolved
	FailedLabel = "Unavailable"

	DefaultLookupTimeout = 10 * time.Second
)

var (
	// ErrNotFound is returned by a NameSource when the entity does not exist
	ErrNotFound = errors.New("entity not found")

	ErrUnsupportedEntity = errors.New("unsupported entity type")
)

// NameSource fetches the display name of an entity
type NameSource interface {
	FetchName(ctx context.Context, entity segment.EntityType, id string) (string, error)
}

// LookupFunc resolves the display name of a single entity type
type LookupFunc func(ctx context.Context, id string) (string, error)

type ErrorKind int

const (
	TransportError ErrorKind = iota
	NotFoundError
	TimeoutError
)

func (k ErrorKind) String() string {
	switch k {
	case NotFoundError:
		return "not_found"
	case TimeoutError:
		return "timeout"
	default:
		return "transport"
	}
}

// LookupError describes why a name lookup failed. It is logged, never shown.
type LookupError struct {
	Entity segment.EntityType
	ID     string
	Kind   ErrorKind
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s lookup for %s failed (%s): %v", e.Entity, e.ID, e.Kind, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func newLookupError(entity segment.EntityType, id string, err error) *LookupError {
	kind := TransportError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = TimeoutError
	case errors.Is(err, ErrNotFound):
		kind = NotFoundError
	}
	return &LookupError{Entity: entity, ID: id, Kind: kind, Err: err}
}

type Config struct {
	LookupTimeout time.Duration
}
