// Package rules is the consistency engine of the board. It owns every
// invariant that ties projects, users, memberships and tasks together:
//
//   - project names and user emails are globally unique (emails compared
//     lowercased), task titles are unique per project;
//   - a task belongs to the project it was created in, forever;
//   - a task's assignee is always a current member of the task's project,
//     so removing a membership or a user clears the affected assignments;
//   - deleting a project deletes its tasks and memberships.
//
// Each operation receives the unit of work for the call (store.Tx) and
// returns its result, the events to publish once the unit commits, and a
// *Error on rule violations. Anything else returned is an infrastructure
// failure.
package rules

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
)

type Engine struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger.Named("rules")}
}

func (e *Engine) mustProject(ctx context.Context, tx store.Tx, id int64) (models.Project, error) {
	p, err := tx.FindProject(ctx, id)
	if err != nil {
		return models.Project{}, fmt.Errorf("find project %d: %w", id, err)
	}
	if p == nil {
		return models.Project{}, projectNotFound(id)
	}
	return *p, nil
}

func (e *Engine) mustUser(ctx context.Context, tx store.Tx, id int64) (models.User, error) {
	u, err := tx.FindUser(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("find user %d: %w", id, err)
	}
	if u == nil {
		return models.User{}, userNotFound(id)
	}
	return *u, nil
}

func (e *Engine) mustTask(ctx context.Context, tx store.Tx, id int64) (models.Task, error) {
	t, err := tx.FindTask(ctx, id)
	if err != nil {
		return models.Task{}, fmt.Errorf("find task %d: %w", id, err)
	}
	if t == nil {
		return models.Task{}, taskNotFound(id)
	}
	return *t, nil
}

func (e *Engine) projectDetail(ctx context.Context, tx store.Tx, p models.Project) (models.ProjectDetail, error) {
	members, err := tx.ListMembers(ctx, p.ID)
	if err != nil {
		return models.ProjectDetail{}, fmt.Errorf("list members of project %d: %w", p.ID, err)
	}
	return models.ProjectDetail{Project: p, Members: members}, nil
}

func (e *Engine) taskDetail(ctx context.Context, tx store.Tx, t models.Task) (models.TaskDetail, error) {
	p, err := e.mustProject(ctx, tx, t.ProjectID)
	if err != nil {
		return models.TaskDetail{}, err
	}
	d := models.TaskDetail{Task: t, Project: &p}
	if t.AssignedTo != nil {
		u, err := e.mustUser(ctx, tx, *t.AssignedTo)
		if err != nil {
			return models.TaskDetail{}, err
		}
		d.AssignedUser = &u
	}
	return d, nil
}

// checkAssignee enforces that userID exists and is a member of project.
func (e *Engine) checkAssignee(ctx context.Context, tx store.Tx, project models.Project, userID int64) error {
	assignee, err := e.mustUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	ok, err := tx.IsMember(ctx, project.ID, assignee.ID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return assigneeNotMember(assignee.Name, project.Name)
	}
	return nil
}
