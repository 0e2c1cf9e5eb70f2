package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

const resetAudience = "password-reset"

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and verifies HS256 bearer tokens. Reset tokens carry a
// dedicated audience so a login token can never be replayed as a password
// reset and vice versa.
type TokenIssuer struct {
	secret   []byte
	ttl      time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:   secret,
		ttl:      ttl,
		resetTTL: 30 * time.Minute,
		now:      time.Now,
	}
}

func (i *TokenIssuer) Issue(userID string) (string, error) {
	return i.sign(userID, i.ttl, nil)
}

func (i *TokenIssuer) IssueReset(userID string) (string, error) {
	return i.sign(userID, i.resetTTL, jwt.ClaimStrings{resetAudience})
}

func (i *TokenIssuer) sign(userID string, ttl time.Duration, audience jwt.ClaimStrings) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Audience:  audience,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify returns the user id carried by a login token.
func (i *TokenIssuer) Verify(tokenString string) (string, error) {
	return i.verify(tokenString, "")
}

// VerifyReset returns the user id carried by a password-reset token.
func (i *TokenIssuer) VerifyReset(tokenString string) (string, error) {
	return i.verify(tokenString, resetAudience)
}

func (i *TokenIssuer) verify(tokenString, audience string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	// A reset token must never pass plain login verification.
	if audience == "" && len(claims.Audience) > 0 {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// UserSource loads users by id for request authentication.
type UserSource interface {
	UserByID(ctx context.Context, id string) (*domain.User, error)
}

// Middleware resolves the bearer token to an actor and stores it in the
// request context. It never rejects requests itself; guards decide what an
// absent actor means for each route.
func Middleware(issuer *TokenIssuer, users UserSource, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := issuer.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.UserByID(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					logger.Error("failed to load actor", "error", err, "user_id", userID)
				}
				next.ServeHTTP(w, r)
				return
			}

			if !user.IsActive {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), user)))
		})
	}
}
