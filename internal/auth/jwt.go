package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenExpiry = 24 * time.Hour

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
}

// Claims asserts that a license passed validation.
type Claims struct {
	LicenseID string `json:"license_id"`
	jwt.RegisteredClaims
}

// Issuer signs validation tokens with a shared HS256 secret.
type Issuer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewIssuer(config JWTConfig) (*Issuer, error) {
	if config.Secret == "" {
		return nil, ErrMissingSecret
	}
	expiry := config.Expiry
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	return &Issuer{
		secret: []byte(config.Secret),
		expiry: expiry,
		now:    time.Now,
	}, nil
}

func (i *Issuer) Issue(licenseID string) (string, error) {
	now := i.now()
	claims := Claims{
		LicenseID: licenseID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token issued by this issuer. Nothing in the validation
// flow calls it; tools and tests use it to inspect issued tokens.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
