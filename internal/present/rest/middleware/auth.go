package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/present/rest/presenter"
	"github.com/cityflow/cityflow/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

func (s *AuthMiddleware) IdentifyIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Service.IdentifyIdentity")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto skipCheckAuthorization
			}

			result, err := s.auth.AuthJwt(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyIdentity: s.auth.AuthJwt failed"))
				goto skipCheckAuthorization
			}

			ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, result.UserID)
			ctx = context.WithValue(ctx, domain.RequesterRoleCtxKey, result.Role)
			span.SetAttributes(
				attribute.Int64("RequesterId", result.UserID),
				attribute.String("RequesterRole", string(result.Role)),
			)
		}

	skipCheckAuthorization:
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequireAuth rejects requests that IdentifyIdentity could not attach an actor to.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := ActorFrom(c.Request().Context()); !ok {
			return presenter.Unauthorized(c)
		}
		return next(c)
	}
}

// ActorFrom reads the authenticated actor from ctx.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	id, ok := ctx.Value(domain.RequesterIdCtxKey).(int64)
	if !ok {
		return domain.Actor{}, false
	}
	role, ok := ctx.Value(domain.RequesterRoleCtxKey).(domain.Role)
	if !ok {
		return domain.Actor{}, false
	}
	return domain.Actor{ID: id, Role: role}, true
}
