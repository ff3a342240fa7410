package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
)

// Credential is one row of the credential table.
type Credential struct {
	ID        uint   `gorm:"primaryKey"`
	LookupKey string `gorm:"uniqueIndex;not null"`
	Role      string `gorm:"not null"`
	Name      string `gorm:"not null"`
	Hash      []byte `gorm:"not null"`
	CreatedAt time.Time
}

// GormStore keeps credentials in postgres.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects to dsn and migrates the credential table.
func OpenGorm(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, fmt.Errorf("migrate credentials: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Add(ctx context.Context, e Entry) error {
	h, err := hashSecret(e.Secret)
	if err != nil {
		return err
	}
	row := Credential{LookupKey: key(e.Role, e.Name), Role: string(e.Role), Name: e.Name, Hash: h}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// Seed adds entries that are not present yet.
func (s *GormStore) Seed(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if err := s.Add(ctx, e); err != nil && !errors.Is(err, ErrDuplicate) {
			return err
		}
	}
	return nil
}

func (s *GormStore) Verify(ctx context.Context, role engine.Role, name, secret string) error {
	var row Credential
	err := s.db.WithContext(ctx).Where("lookup_key = ?", key(role, name)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidCredential
	}
	if err != nil {
		return fmt.Errorf("lookup credential: %w", err)
	}
	return compare(row.Hash, secret)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
