// Package authz answers role questions about Slack users.
package authz

import (
	"context"
	"fmt"

	"github.com/lalith-99/leaddesk/internal/errs"
	"github.com/lalith-99/leaddesk/internal/models"
)

// UserFinder is the slice of the user repository the guard needs.
type UserFinder interface {
	FindUser(ctx context.Context, slackID string) (*models.UserProfile, error)
	FindAdmins(ctx context.Context) ([]models.UserProfile, error)
}

// Guard holds no state of its own; every check reads the repository.
type Guard struct {
	users UserFinder
}

func NewGuard(users UserFinder) *Guard {
	return &Guard{users: users}
}

// IsAdmin reports whether actorID is flagged admin. Unknown users are not.
func (g *Guard) IsAdmin(ctx context.Context, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	u, err := g.users.FindUser(ctx, actorID)
	if err != nil {
		return false, errs.Upstream("find user", err)
	}
	return u != nil && u.IsAdmin, nil
}

// GetAdmin returns the single admin profile. Zero admins is ErrNoAdmin and
// more than one is ErrMultipleAdmins; neither is resolved by picking one.
func (g *Guard) GetAdmin(ctx context.Context) (*models.UserProfile, error) {
	admins, err := g.users.FindAdmins(ctx)
	if err != nil {
		return nil, errs.Upstream("find admins", err)
	}
	switch len(admins) {
	case 0:
		return nil, errs.ErrNoAdmin
	case 1:
		return &admins[0], nil
	default:
		return nil, fmt.Errorf("%w: %d admins", errs.ErrMultipleAdmins, len(admins))
	}
}
