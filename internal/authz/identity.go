package authz

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/gorm"
)

// ResolveUserID maps the request context to a user ID. It prefers the ID
// claim written by the auth middleware and falls back to looking up the
// email claim, so tokens minted before an account was recreated still
// resolve. Returns 0 when neither yields a known user.
func (c *Checker) ResolveUserID(ctx context.Context) (uint, error) {
	if id := middleware.GetUserID(ctx); id != 0 {
		return id, nil
	}

	email := strings.TrimSpace(strings.ToLower(middleware.GetUserEmail(ctx)))
	if email == "" {
		return 0, nil
	}

	var user models.User
	err := c.db.WithContext(ctx).Where("LOWER(email) = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return user.ID, nil
}

// Identity sits after the auth middleware and rewrites the user ID in the
// context when the token carried no usable ID claim but its email claim
// resolves. Handlers keep reading middleware.GetUserID.
func (c *Checker) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if middleware.GetUserID(r.Context()) == 0 {
			if id, err := c.ResolveUserID(r.Context()); err == nil && id != 0 {
				ctx := context.WithValue(r.Context(), middleware.UserIDKey, id)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}
