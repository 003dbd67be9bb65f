package rules

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/michae-lzhou/Task-Board/internal/events"
	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
)

func (e *Engine) CreateUser(ctx context.Context, tx store.Tx, name, email string) (models.User, []events.Event, error) {
	email = models.NormalizeEmail(email)

	dupe, err := tx.FindUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, nil, fmt.Errorf("find user by email: %w", err)
	}
	if dupe != nil {
		return models.User{}, nil, duplicateUserEmail(email)
	}

	u, err := tx.InsertUser(ctx, name, email)
	if err != nil {
		return models.User{}, nil, fmt.Errorf("insert user: %w", err)
	}
	return u, []events.Event{events.NewUserCreated(u)}, nil
}

func (e *Engine) GetUser(ctx context.Context, tx store.Tx, id int64) (models.User, error) {
	return e.mustUser(ctx, tx, id)
}

func (e *Engine) ListUsers(ctx context.Context, tx store.Tx) ([]models.User, error) {
	users, err := tx.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (e *Engine) ListUsersByProject(ctx context.Context, tx store.Tx, projectID int64) ([]models.User, error) {
	p, err := e.mustProject(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	members, err := tx.ListMembers(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list members of project %d: %w", p.ID, err)
	}
	return members, nil
}

// FindExact looks a user up by exact name and normalized email. It returns
// nil when nobody matches both.
func (e *Engine) FindExact(ctx context.Context, tx store.Tx, name, email string) (*models.User, error) {
	u, err := tx.FindUserByNameAndEmail(ctx, name, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("find user by name and email: %w", err)
	}
	return u, nil
}

// FindOrCreateByNameAndEmail composes FindExact and CreateUser. The key is
// the (name, email) pair: a known email under another name misses the
// lookup and then fails CreateUser with ErrDuplicateEmail.
func (e *Engine) FindOrCreateByNameAndEmail(ctx context.Context, tx store.Tx, name, email string) (models.User, []events.Event, error) {
	u, err := e.FindExact(ctx, tx, name, email)
	if err != nil {
		return models.User{}, nil, err
	}
	if u != nil {
		return *u, nil, nil
	}
	return e.CreateUser(ctx, tx, name, email)
}

func (e *Engine) DeleteUser(ctx context.Context, tx store.Tx, id int64) (models.User, []events.Event, error) {
	u, err := e.mustUser(ctx, tx, id)
	if err != nil {
		return models.User{}, nil, err
	}

	unassigned, err := e.UnassignUser(ctx, tx, u.ID)
	if err != nil {
		return models.User{}, nil, err
	}
	if err := tx.RemoveUserMemberships(ctx, u.ID); err != nil {
		return models.User{}, nil, fmt.Errorf("remove memberships of user %d: %w", u.ID, err)
	}
	if err := tx.DeleteUser(ctx, u.ID); err != nil {
		return models.User{}, nil, fmt.Errorf("delete user %d: %w", u.ID, err)
	}

	evs := make([]events.Event, 0, len(unassigned)+1)
	for _, t := range unassigned {
		d, err := e.taskDetail(ctx, tx, t)
		if err != nil {
			return models.User{}, nil, err
		}
		evs = append(evs, events.NewTaskUpdated(d))
	}
	evs = append(evs, events.NewUserDeleted(u))

	e.logger.Debug("user deleted",
		zap.Int64("user_id", u.ID),
		zap.Int("unassigned_tasks", len(unassigned)),
	)
	return u, evs, nil
}
