package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/clanhub/internal/httputil"
	users "github.com/AdamBeresnev/clanhub/internal/user"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
)

type ContextKey string

const UserKey ContextKey = "user"

// Claims carried by bearer tokens. The subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticate verifies the HS256 bearer token and stores the caller in the request context.
// Tokens are issued elsewhere; this service only verifies them. Browsers cannot set headers on
// websocket upgrades, so those may pass the token as the access_token query parameter instead.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && websocket.IsWebSocketUpgrade(r) {
				if token := r.URL.Query().Get("access_token"); token != "" {
					header = "Bearer " + token
				}
			}

			user, err := parseBearer(header, secret)
			if err != nil {
				httputil.Unauthorized(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func parseBearer(header string, secret []byte) (users.User, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return users.User{}, errors.New("missing bearer token")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return users.User{}, errors.New("invalid or expired token")
	}
	if claims.Subject == "" {
		return users.User{}, errors.New("token has no subject")
	}

	role := users.RolePlayer
	if users.Role(claims.Role) == users.RoleAdmin {
		role = users.RoleAdmin
	}
	return users.User{ID: claims.Subject, Role: role}, nil
}

func WithUser(ctx context.Context, user users.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

func GetUser(ctx context.Context) (users.User, bool) {
	user, ok := ctx.Value(UserKey).(users.User)
	return user, ok
}
