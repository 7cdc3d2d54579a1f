package service

import (
	"context"
	"fmt"

	"github.com/dak-1306/pyctalk-sub001/internal/config"
	apperrors "github.com/dak-1306/pyctalk-sub001/pkg/errors"
	"github.com/dak-1306/pyctalk-sub001/pkg/jwt"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

// TokenVerifier - интерфейс коллаборатора аутентификации. Ядро доверяет
// только личности, полученной отсюда, а не полю from в полезной нагрузке.
// Выпуск токенов (логин, регистрация) живет вне этого сервиса.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

type jwtVerifier struct {
	cfg config.AuthConfig
	log logger.Logger
}

func NewTokenVerifier(cfg config.AuthConfig, log logger.Logger) TokenVerifier {
	return &jwtVerifier{cfg: cfg, log: log}
}

// Verify возвращает аутентифицированное имя пользователя из access-токена
func (v *jwtVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", apperrors.ErrUnauthorized)
	}

	claims, err := jwt.ValidateToken(token, v.cfg.AccessSecret)
	if err != nil {
		v.log.Debug("Token validation failed", "error", err)
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidToken, err)
	}

	return claims.Username, nil
}
