package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/khalidAdell/quick-task/domain/task"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore keeps tasks in a relational table through GORM. Bids and
// requirements are serialized as JSON columns of the task row, so a task and
// its bids are always written together.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// OpenSQLiteStore opens (and migrates) a sqlite task database.
func OpenSQLiteStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps db and migrates the tasks table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&domain.Task{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	var t domain.Task
	result := s.db.WithContext(ctx).First(&t, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errTaskNotFound(id)
		}
		return nil, result.Error
	}
	return &t, nil
}

func (s *GormStore) Create(ctx context.Context, t *domain.Task) error {
	return s.db.WithContext(ctx).Create(t).Error
}

// Update writes every column of t in one statement guarded by the version column.
func (s *GormStore) Update(ctx context.Context, t *domain.Task, expectedVersion int64) error {
	result := s.db.WithContext(ctx).Model(&domain.Task{}).
		Where("id = ? AND version = ?", t.ID, expectedVersion).
		Select("*").
		Updates(t)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.missOrStale(ctx, t.ID)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id string, expectedVersion int64) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND version = ?", id, expectedVersion).
		Delete(&domain.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.missOrStale(ctx, id)
	}
	return nil
}

// missOrStale tells a missing row from a version mismatch after a conditional write matched nothing.
func (s *GormStore) missOrStale(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Task{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errTaskNotFound(id)
	}
	return ErrStaleVersion
}

func (s *GormStore) Query(ctx context.Context, q domain.Query) ([]*domain.Task, int, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&domain.Task{}).Scopes(matching(q)).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []*domain.Task
	err := s.db.WithContext(ctx).Scopes(matching(q)).
		Order(orderClause(q.Sort)).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, int(total), nil
}

// matching applies the predicates of q.
func matching(q domain.Query) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if q.Category != "" {
			tx = tx.Where("category = ?", q.Category)
		}
		if q.MinPrice > 0 {
			tx = tx.Where("price >= ?", q.MinPrice)
		}
		if q.MaxPrice > 0 {
			tx = tx.Where("price <= ?", q.MaxPrice)
		}
		if len(q.Statuses) > 0 {
			tx = tx.Where("status IN ?", statusStrings(q.Statuses))
		}
		if q.OwnerID != "" {
			tx = tx.Where("owner_id = ?", q.OwnerID)
		}
		if q.AssignedTo != "" {
			tx = tx.Where("assigned_to = ?", q.AssignedTo)
		}
		if q.Search != "" {
			like := containsPattern(strings.ToLower(q.Search))
			tx = tx.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, like, like)
		}
		return tx
	}
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// orderClause is shared by the SQL stores.
func orderClause(order domain.SortOrder) string {
	switch order {
	case domain.SortPriceAsc:
		return "price ASC, id ASC"
	case domain.SortPriceDesc:
		return "price DESC, id ASC"
	case domain.SortDeadline:
		return "deadline ASC, id ASC"
	default:
		return "posted_at DESC, id ASC"
	}
}
