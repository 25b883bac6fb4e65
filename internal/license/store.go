package license

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("license not found")
	ErrInactive         = errors.New("license is inactive")
	ErrExpired          = errors.New("license has expired")
	ErrHardwareMismatch = errors.New("hardware id mismatch")
	ErrInvalidDuration  = errors.New("duration out of range")
)

// Store persists licenses. Lookups return ErrNotFound when nothing matches.
type Store interface {
	Create(ctx context.Context, l *License) error
	FindByKey(ctx context.Context, key string) (*License, error)
	FindByID(ctx context.Context, id string) (*License, error)
	List(ctx context.Context) ([]License, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type TokenIssuer interface {
	Issue(licenseID string) (string, error)
}
