package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	domain "github.com/khalidAdell/quick-task/domain/task"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	assigned_to TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL,
	status      TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	deadline    TIMESTAMPTZ NOT NULL,
	posted_at   TIMESTAMPTZ NOT NULL,
	version     BIGINT NOT NULL,
	document    JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_owner_id_idx ON tasks (owner_id);
CREATE INDEX IF NOT EXISTS tasks_assigned_to_idx ON tasks (assigned_to);
CREATE INDEX IF NOT EXISTS tasks_status_idx ON tasks (status);
`

// PostgresStore keeps each task as a JSONB document next to the columns
// listings filter and sort on.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgresStore connects to databaseURL and creates the schema.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT document FROM tasks WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errTaskNotFound(id)
		}
		return nil, err
	}
	return decodeTask(doc)
}

func (s *PostgresStore) Create(ctx context.Context, t *domain.Task) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tasks (id, owner_id, assigned_to, category, status, title, description, price, deadline, posted_at, version, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.OwnerID, t.AssignedTo, t.Category, string(t.Status), t.Title, t.Description,
		t.Price, t.Deadline, t.PostedAt, t.Version, doc,
	)
	if err != nil {
		if isPgDuplicateKeyError(err) {
			return fmt.Errorf("task %s already exists", t.ID)
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, t *domain.Task, expectedVersion int64) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET assigned_to = $3, category = $4, status = $5, title = $6, description = $7,
		    price = $8, deadline = $9, version = $10, document = $11
		WHERE id = $1 AND version = $2`,
		t.ID, expectedVersion, t.AssignedTo, t.Category, string(t.Status), t.Title, t.Description,
		t.Price, t.Deadline, t.Version, doc,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.missOrStale(ctx, t.ID)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string, expectedVersion int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND version = $2`, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.missOrStale(ctx, id)
	}
	return nil
}

func (s *PostgresStore) missOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return errTaskNotFound(id)
	}
	return ErrStaleVersion
}

func (s *PostgresStore) Query(ctx context.Context, q domain.Query) ([]*domain.Task, int, error) {
	where, args := postgresFilter(q)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, q.Limit, q.Offset)
	sql := fmt.Sprintf(`SELECT document FROM tasks%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		where, orderClause(q.Sort), len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks := make([]*domain.Task, 0, q.Limit)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, err
		}
		t, err := decodeTask(doc)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// postgresFilter renders the predicates of q as a WHERE clause with positional arguments.
func postgresFilter(q domain.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if q.Category != "" {
		add("category = ?", q.Category)
	}
	if q.MinPrice > 0 {
		add("price >= ?", q.MinPrice)
	}
	if q.MaxPrice > 0 {
		add("price <= ?", q.MaxPrice)
	}
	if len(q.Statuses) > 0 {
		add("status = ANY(?)", statusStrings(q.Statuses))
	}
	if q.OwnerID != "" {
		add("owner_id = ?", q.OwnerID)
	}
	if q.AssignedTo != "" {
		add("assigned_to = ?", q.AssignedTo)
	}
	if q.Search != "" {
		add(`(title ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\')`, containsPattern(q.Search))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func decodeTask(doc []byte) (*domain.Task, error) {
	var t domain.Task
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &t, nil
}

// isPgDuplicateKeyError checks if error is a PostgreSQL unique violation.
func isPgDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
