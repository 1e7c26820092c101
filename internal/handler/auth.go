package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/auth"
)

type userIDKey struct{}

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// HashToken returns the hex HMAC-SHA256 of token under pepper, the form in
// which tokens are stored.
func HashToken(pepper []byte, token string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// BearerAuth returns a middleware that resolves "Authorization: Bearer" tokens
// through tokens and stores the owning user id in the request context.
func BearerAuth(tokens auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
				return
			}

			hash := HashToken(pepper, token)
			info, err := tokens.FindByHash(r.Context(), hash)
			if err != nil {
				zctx.From(r.Context()).Debug("Token lookup failed", zap.Error(err))
				writeError(w, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
				return
			}
			if subtle.ConstantTimeCompare([]byte(hash), []byte(info.TokenHash)) != 1 {
				writeError(w, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), info.UserID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
