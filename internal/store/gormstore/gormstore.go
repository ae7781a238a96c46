// Package gormstore persists records in PostgreSQL through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pastelcal/internal/dateutil"
	appLog "pastelcal/internal/log"
	"pastelcal/internal/model"
	"pastelcal/internal/store"
)

type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the events and users tables.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("gormstore: dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(appLog.GormWriter(), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: connect: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and runs the migrations.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&model.EventItem{}, &model.User{}); err != nil {
		return nil, fmt.Errorf("gormstore: auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Create(ctx context.Context, items ...model.EventItem) ([]model.EventItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	for _, it := range items {
		if it.ID == "" || it.Owner == "" {
			return nil, errors.New("gormstore: record needs id and owner")
		}
	}
	rows := append([]model.EventItem(nil), items...)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) Get(ctx context.Context, owner, id string) (model.EventItem, error) {
	var it model.EventItem
	err := s.db.WithContext(ctx).Where("owner_id = ? AND id = ?", owner, id).First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.EventItem{}, store.ErrNotFound
	}
	return it, err
}

func (s *Store) Update(ctx context.Context, owner, id string, p model.Patch) (model.EventItem, error) {
	var it model.EventItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND id = ?", owner, id).First(&it).Error; err != nil {
			return err
		}
		p.Apply(&it, false)
		return tx.Save(&it).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.EventItem{}, store.ErrNotFound
	}
	if err != nil {
		return model.EventItem{}, err
	}
	return it, nil
}

// textColumns maps the title/notes part of p onto column updates.
func textColumns(p model.Patch) map[string]any {
	cols := make(map[string]any, 3)
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.Notes != nil {
		cols["notes"] = *p.Notes
	}
	return cols
}

func (s *Store) UpdateGroup(ctx context.Context, owner, groupID string, p model.Patch) ([]model.EventItem, error) {
	if groupID == "" {
		return nil, store.ErrNotFound
	}
	var members []model.EventItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := tx.Model(&model.EventItem{}).Where("owner_id = ? AND group_id = ?", owner, groupID)
		if cols := textColumns(p); len(cols) > 0 {
			cols["updated_at"] = time.Now()
			res := scope.Updates(cols)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return store.ErrNotFound
			}
		}
		return tx.Where("owner_id = ? AND group_id = ?", owner, groupID).
			Order("date, created_at, id").Find(&members).Error
	})
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, store.ErrNotFound
	}
	return members, nil
}

func (s *Store) Delete(ctx context.Context, owner, id string) error {
	tx := s.db.WithContext(ctx).Delete(&model.EventItem{}, "owner_id = ? AND id = ?", owner, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, owner, groupID string) (int, error) {
	if groupID == "" {
		return 0, store.ErrNotFound
	}
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.EventItem{}, "owner_id = ? AND group_id = ?", owner, groupID)
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, store.ErrNotFound
	}
	return int(removed), nil
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]model.EventItem, error) {
	db := s.db.WithContext(ctx)
	q := db.Where("owner_id = ?", f.Owner)
	if f.YearMonth != "" {
		first, last, err := dateutil.MonthBounds(f.YearMonth)
		if err != nil {
			return nil, err
		}
		touched := db.Model(&model.EventItem{}).Select("group_id").
			Where("owner_id = ? AND group_id <> '' AND date BETWEEN ? AND ?", f.Owner, first, last)
		q = q.Where("(date BETWEEN ? AND ?) OR group_id IN (?)", first, last, touched)
	}
	items := make([]model.EventItem, 0)
	if err := q.Order("date, created_at, id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Users returns the account table as an auth directory.
func (s *Store) Users() *Users { return &Users{db: s.db} }

type Users struct {
	db *gorm.DB
}

// Lookup finds an account by username. A missing account is store.ErrNotFound.
func (u *Users) Lookup(ctx context.Context, username string) (model.User, error) {
	var user model.User
	err := u.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, store.ErrNotFound
	}
	return user, err
}

// Put inserts the account or replaces the hash and name of an existing one.
func (u *Users) Put(ctx context.Context, user model.User) (model.User, error) {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.User
		err := tx.Where("username = ?", user.Username).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&user).Error
		case err != nil:
			return err
		}
		existing.PasswordHash = user.PasswordHash
		existing.Name = user.Name
		user = existing
		return tx.Save(&user).Error
	})
	return user, err
}

var _ store.Store = (*Store)(nil)
