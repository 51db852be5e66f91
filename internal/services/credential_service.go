package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultCredentialTTL = 7 * 24 * time.Hour

var (
	ErrMissingSigningSecret = errors.New("credential signing secret is empty")
	ErrInvalidCredential    = errors.New("invalid or expired credential")
)

type Claims struct {
	UserID string `json:"user_id"`
	Mobile string `json:"mobile"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// CredentialIssuer выпускает и проверяет подписанные HS256 токены.
type CredentialIssuer interface {
	Issue(userID, mobile, role string) (token string, expiresAt time.Time, err error)
	Verify(token string) (*Claims, error)
}

type jwtIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewCredentialIssuer(secret, issuer string, ttl time.Duration) (CredentialIssuer, error) {
	if secret == "" {
		return nil, ErrMissingSigningSecret
	}
	if ttl <= 0 {
		ttl = defaultCredentialTTL
	}
	return &jwtIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

func (i *jwtIssuer) Issue(userID, mobile, role string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := &Claims{
		UserID: userID,
		Mobile: mobile,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign credential: %w", err)
	}
	return token, exp, nil
}

func (i *jwtIssuer) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidCredential
	}
	if claims.UserID == "" {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}
