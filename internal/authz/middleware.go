package authz

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/safar/koloa-ledger/internal/ledger"
	"github.com/safar/koloa-ledger/internal/models"
)

// UserHeader carries the acting user's id.
const UserHeader = "X-User-ID"

type UserGetter interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Middleware resolves the acting user and enforces a Policy.
type Middleware struct {
	Users  UserGetter
	Policy *Policy
	Logger *slog.Logger
}

// Require rejects requests whose user is missing or unknown with 401 and
// requests the policy denies with 403. Allowed requests carry the user in
// their context.
func (m Middleware) Require(action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := headerUserID(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing or invalid "+UserHeader+" header")
				return
			}

			user, err := m.Users.GetUser(r.Context(), userID)
			if err != nil {
				if errors.Is(err, ledger.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unknown user")
					return
				}
				if m.Logger != nil {
					m.Logger.Error("authz resolve user", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			if !m.Policy.Allows(user.Role, action, resource) {
				writeError(w, http.StatusForbidden, "forbidden: "+Permission(resource, action)+" required")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

func headerUserID(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(UserHeader))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user placed by Require, or nil.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey{}).(*models.User)
	return user
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
