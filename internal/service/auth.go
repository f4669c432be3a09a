package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/cityflow/cityflow/internal/domain"
)

var tracer = otel.Tracer("auth")

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type AuthService struct {
	config AuthConfig
}

func NewAuthService(config AuthConfig) *AuthService {
	return &AuthService{config: config}
}

// Claims is the bearer token payload. Subject holds the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthResult struct {
	UserID int64
	Role   domain.Role
}

func (r AuthResult) Actor() domain.Actor {
	return domain.Actor{ID: r.UserID, Role: r.Role}
}

func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	}, options...)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &AuthResult{UserID: userID, Role: role}, nil
}

// Issue signs a token for the user. The identity subsystem owns login,
// this is used by tooling and tests.
func (s *AuthService) Issue(userID int64, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
}
