package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const splitSize = 2

var secretKey []byte

type userCtxKeyType int

const userCtxKey userCtxKeyType = iota

// customClaims carries the opaque user id issued by the identity provider.
type customClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func SetSecretKey(key []byte) {
	secretKey = key
}

// JWTAuthMiddleware verifies a bearer token minted by the identity provider
// and stores the caller's uid in the request context. This service never
// issues tokens itself.
func JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(secretKey) == 0 {
			http.Error(w, `{"errors":"jwt secret not configured"}`, http.StatusInternalServerError)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"errors":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authHeader, " ", splitSize)
		if len(parts) != splitSize || parts[0] != "Bearer" {
			http.Error(w, `{"errors":"invalid token format"}`, http.StatusUnauthorized)
			return
		}
		token, err := jwt.ParseWithClaims(parts[1], &customClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, http.ErrNoCookie
			}
			return secretKey, nil
		})
		if err != nil {
			http.Error(w, `{"errors":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		claims, ok := token.Claims.(*customClaims)
		if !ok || !token.Valid || claims.UserID == "" {
			http.Error(w, `{"errors":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userCtxKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func MustGetUserID(ctx context.Context) string {
	val := ctx.Value(userCtxKey)
	if val == nil {
		return ""
	}
	return val.(string)
}
