// Package sqlite stores licenses in an embedded SQLite database through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/EternisAI/silo-license/internal/license"
)

// LicenseModel is the gorm row for a license.
type LicenseModel struct {
	ID         string    `gorm:"type:text;primaryKey"`
	Key        string    `gorm:"type:text;not null;index:idx_licenses_key"`
	ProductID  string    `gorm:"type:text;not null"`
	CustomerID string    `gorm:"type:text;not null"`
	IssuedAt   time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	HardwareID string    `gorm:"type:text;not null;default:''"`
	Features   []string  `gorm:"type:text;serializer:json;not null"`
	Active     bool      `gorm:"not null;default:true"`
}

func (LicenseModel) TableName() string {
	return "licenses"
}

func fromDomain(l *license.License) *LicenseModel {
	return &LicenseModel{
		ID:         l.ID,
		Key:        l.Key,
		ProductID:  l.ProductID,
		CustomerID: l.CustomerID,
		IssuedAt:   l.IssuedAt,
		ExpiresAt:  l.ExpiresAt,
		HardwareID: l.HardwareID,
		Features:   l.Features,
		Active:     l.Active,
	}
}

func (m *LicenseModel) toDomain() *license.License {
	features := m.Features
	if features == nil {
		features = []string{}
	}
	return &license.License{
		ID:         m.ID,
		Key:        m.Key,
		ProductID:  m.ProductID,
		CustomerID: m.CustomerID,
		IssuedAt:   m.IssuedAt.UTC(),
		ExpiresAt:  m.ExpiresAt.UTC(),
		HardwareID: m.HardwareID,
		Features:   features,
		Active:     m.Active,
	}
}

type Store struct {
	db *gorm.DB
}

// Open connects to the database file at path (":memory:" for a throwaway
// database) and migrates the licenses table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" shared.
	sqlDB.SetMaxOpenConns(1)

	return NewStore(db)
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&LicenseModel{}); err != nil {
		return nil, fmt.Errorf("migrate licenses table: %w", err)
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

func (s *Store) Create(ctx context.Context, l *license.License) error {
	if err := s.db.WithContext(ctx).Create(fromDomain(l)).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create license",
			"operation", "create",
			"license_id", l.ID,
			"error", err,
		)
		return err
	}
	return nil
}

func (s *Store) FindByKey(ctx context.Context, key string) (*license.License, error) {
	return s.first(ctx, "find_by_key", "key = ?", key)
}

func (s *Store) FindByID(ctx context.Context, id string) (*license.License, error) {
	return s.first(ctx, "find_by_id", "id = ?", id)
}

func (s *Store) first(ctx context.Context, operation, query string, arg any) (*license.License, error) {
	var model LicenseModel
	err := s.db.WithContext(ctx).
		Where(query, arg).
		Order("issued_at ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, license.ErrNotFound
		}
		slog.ErrorContext(ctx, "failed to find license",
			"operation", operation,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

func (s *Store) List(ctx context.Context) ([]license.License, error) {
	var models []LicenseModel
	err := s.db.WithContext(ctx).
		Order("issued_at ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to list licenses",
			"operation", "list",
			"error", err,
		)
		return nil, err
	}

	result := make([]license.License, len(models))
	for i := range models {
		result[i] = *models[i].toDomain()
	}
	return result, nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&LicenseModel{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		slog.ErrorContext(ctx, "failed to update license",
			"operation", "set_active",
			"license_id", id,
			"active", active,
			"error", res.Error,
		)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return license.ErrNotFound
	}
	return nil
}
