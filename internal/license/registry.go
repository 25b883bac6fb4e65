package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	keyLength = 24

	// Expiry timestamps must stay within years 0000-9999 to serialize.
	maxDurationDays = 3_000_000
	maxExpiryYear   = 9999
)

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithStrictHardwareBinding makes a bound license reject validation requests
// that carry no hardware id.
func WithStrictHardwareBinding(strict bool) Option {
	return func(r *Registry) {
		r.strictBinding = strict
	}
}

type Registry struct {
	store         Store
	issuer        TokenIssuer
	now           func() time.Time
	strictBinding bool
}

func NewRegistry(store Store, issuer TokenIssuer, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Create(ctx context.Context, params CreateParams) (*License, error) {
	features := params.Features
	if features == nil {
		features = []string{}
	}

	now := r.now().UTC()
	expiresAt, err := expiryFrom(now, params.DurationDays)
	if err != nil {
		return nil, err
	}

	l := &License{
		ID:         uuid.NewString(),
		Key:        generateKey(),
		ProductID:  params.ProductID,
		CustomerID: params.CustomerID,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
		HardwareID: params.HardwareID,
		Features:   features,
		Active:     true,
	}

	if err := r.store.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("store license: %w", err)
	}

	slog.Info("License created",
		"license_id", l.ID,
		"product_id", l.ProductID,
		"customer_id", l.CustomerID,
		"hardware_bound", l.Bound(),
		"expires_at", l.ExpiresAt)
	return l, nil
}

func (r *Registry) Validate(ctx context.Context, key, hardwareID string) (*ValidationResult, error) {
	l, err := r.store.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find license: %w", err)
	}

	if !l.Active {
		return nil, ErrInactive
	}
	if l.ExpiresAt.Before(r.now()) {
		return nil, ErrExpired
	}
	if l.Bound() {
		// Without strict binding a request that omits the hardware id is
		// accepted for a bound license.
		if hardwareID != "" && hardwareID != l.HardwareID {
			return nil, ErrHardwareMismatch
		}
		if hardwareID == "" && r.strictBinding {
			return nil, ErrHardwareMismatch
		}
	}

	token, err := r.issuer.Issue(l.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &ValidationResult{
		Valid:    true,
		Token:    token,
		Features: l.Features,
	}, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*License, error) {
	return r.store.FindByID(ctx, id)
}

func (r *Registry) List(ctx context.Context) ([]License, error) {
	return r.store.List(ctx)
}

func (r *Registry) Deactivate(ctx context.Context, id string) (*License, error) {
	if err := r.store.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	slog.Info("License deactivated", "license_id", id)
	return r.store.FindByID(ctx, id)
}

func expiryFrom(now time.Time, days int) (time.Time, error) {
	if days > maxDurationDays || days < -maxDurationDays {
		return time.Time{}, fmt.Errorf("%w: %d days", ErrInvalidDuration, days)
	}
	expiresAt := now.AddDate(0, 0, days)
	if expiresAt.Year() < 0 || expiresAt.Year() > maxExpiryYear {
		return time.Time{}, fmt.Errorf("%w: %d days", ErrInvalidDuration, days)
	}
	return expiresAt, nil
}

func generateKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:keyLength]
}
