package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"resumate/internal/config"
)

// TokenIssuer 负责签发与校验作业级 WebSocket 令牌。
// 令牌绑定单个作业号，拿到令牌只能订阅该作业的进度。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// JobClaims 表示作业令牌中的业务字段。
type JobClaims struct {
	JobID string `json:"job_id"`
	jwt.RegisteredClaims
}

// NewTokenIssuer 构造令牌签发器。
func NewTokenIssuer(cfg config.AuthConfig) (*TokenIssuer, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	ttl := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(cfg.JWTSecret), ttl: ttl}, nil
}

// IssueJobToken 为指定作业签发订阅令牌。
func (t *TokenIssuer) IssueJobToken(jobID string) (string, error) {
	now := time.Now()
	claims := JobClaims{
		JobID: jobID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   jobID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign job token: %w", err)
	}
	return signed, nil
}

// ValidateJobToken 校验令牌并确认其绑定的作业号。
func (t *TokenIssuer) ValidateJobToken(tokenString, jobID string) (*JobClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &JobClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse job token: %w", err)
	}

	claims, ok := token.Claims.(*JobClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.JobID != jobID {
		return nil, errors.New("token not valid for this job")
	}

	return claims, nil
}
