package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/khalidAdell/quick-task/domain/task"
)

// ErrStaleVersion is returned by a Store when a conditional write finds a
// version other than the one it was given.
var ErrStaleVersion = errors.New("stale task version")

// Store persists tasks. Update and Delete are conditional on the version
// the caller read; a mismatch yields ErrStaleVersion and a missing task
// yields an error wrapping domain.ErrNotFound.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Task, error)
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task, expectedVersion int64) error
	Delete(ctx context.Context, id string, expectedVersion int64) error
	Query(ctx context.Context, q domain.Query) ([]*domain.Task, int, error)
	Ping(ctx context.Context) error
	Close() error
}

func errTaskNotFound(id string) error {
	return fmt.Errorf("%w: task %s does not exist", domain.ErrNotFound, id)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern turns search text into a LIKE pattern matching it
// literally anywhere. Use it with ESCAPE '\'.
func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}
