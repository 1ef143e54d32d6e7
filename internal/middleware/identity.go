package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const (
	UserIDCookie = "user_id"

	userIDCookieMaxAge = 30 * 24 * 60 * 60
)

type contextKey string

const userIDKey contextKey = "user_id"

// NewIdentityCodec signs and verifies user_id cookies with hashKey
func NewIdentityCodec(hashKey []byte) *securecookie.SecureCookie {
	return securecookie.New(hashKey, nil).MaxAge(userIDCookieMaxAge)
}

// Identity resolves the conversation identity from the signed user_id
// cookie. A missing, expired or tampered cookie gets a fresh uuid.
func Identity(codec *securecookie.SecureCookie) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			if c, err := r.Cookie(UserIDCookie); err == nil {
				if err := codec.Decode(UserIDCookie, c.Value, &userID); err != nil {
					userID = ""
				}
			}

			if userID == "" {
				userID = uuid.NewString()
				if value, err := codec.Encode(UserIDCookie, userID); err == nil {
					http.SetCookie(w, &http.Cookie{
						Name:     UserIDCookie,
						Value:    value,
						Path:     "/",
						MaxAge:   userIDCookieMaxAge,
						HttpOnly: true,
						SameSite: http.SameSiteLaxMode,
					})
				}
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID stores userID in ctx
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the identity set by Identity, or ""
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// ClientIP returns the host part of the connection's remote address
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
