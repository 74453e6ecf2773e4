package closure

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUnsupportedBackend is returned when the connection is not PostgreSQL.
	ErrUnsupportedBackend = errors.New("closure: requires a PostgreSQL connection")

	// ErrEmptyPath is returned when FindOrCreateByPath is called with no segments.
	ErrEmptyPath = errors.New("closure: path cannot be empty")

	// ErrDuplicateSibling is returned when an insert violates sibling-name
	// uniqueness. With the advisory lock enabled this indicates an external
	// writer; with the lock disabled, a lost race.
	ErrDuplicateSibling = errors.New("closure: sibling with that name already exists")
)

// InvariantError reports an internal consistency failure. It signals a bug
// in the engine rather than bad input or a transient store condition.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("closure: invariant violation: %s", e.Detail)
}

func invariantf(format string, args ...any) error {
	return &InvariantError{Detail: fmt.Sprintf(format, args...)}
}

const pgUniqueViolation = "23505"

// wrapStore wraps a storage failure with the action that produced it,
// surfacing unique violations as ErrDuplicateSibling.
func wrapStore(action string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("closure: %s: %w: %w", action, ErrDuplicateSibling, err)
	}
	return fmt.Errorf("closure: %s: %w", action, err)
}
