package rules

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/michae-lzhou/Task-Board/internal/events"
	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
)

func (e *Engine) CreateProject(ctx context.Context, tx store.Tx, name string) (models.ProjectDetail, []events.Event, error) {
	dupe, err := tx.FindProjectByName(ctx, name)
	if err != nil {
		return models.ProjectDetail{}, nil, fmt.Errorf("find project by name: %w", err)
	}
	if dupe != nil {
		return models.ProjectDetail{}, nil, duplicateProjectName(name)
	}

	p, err := tx.InsertProject(ctx, name)
	if err != nil {
		return models.ProjectDetail{}, nil, fmt.Errorf("insert project: %w", err)
	}

	detail := models.ProjectDetail{Project: p, Members: []models.User{}}
	return detail, []events.Event{events.NewProjectCreated(detail)}, nil
}

func (e *Engine) GetProject(ctx context.Context, tx store.Tx, id int64) (models.ProjectDetail, error) {
	p, err := e.mustProject(ctx, tx, id)
	if err != nil {
		return models.ProjectDetail{}, err
	}
	return e.projectDetail(ctx, tx, p)
}

func (e *Engine) ListProjects(ctx context.Context, tx store.Tx) ([]models.ProjectDetail, error) {
	projects, err := tx.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	out := make([]models.ProjectDetail, 0, len(projects))
	for _, p := range projects {
		d, err := e.projectDetail(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// RenameProject changes a project's name. Keeping the current name is a
// no-op rename, not a collision.
func (e *Engine) RenameProject(ctx context.Context, tx store.Tx, id int64, name string) (models.ProjectDetail, []events.Event, error) {
	p, err := e.mustProject(ctx, tx, id)
	if err != nil {
		return models.ProjectDetail{}, nil, err
	}

	dupe, err := tx.FindProjectByName(ctx, name)
	if err != nil {
		return models.ProjectDetail{}, nil, fmt.Errorf("find project by name: %w", err)
	}
	if dupe != nil && dupe.ID != p.ID {
		return models.ProjectDetail{}, nil, duplicateProjectName(name)
	}

	if err := tx.RenameProject(ctx, p.ID, name); err != nil {
		return models.ProjectDetail{}, nil, fmt.Errorf("rename project %d: %w", p.ID, err)
	}
	p.Name = name

	detail, err := e.projectDetail(ctx, tx, p)
	if err != nil {
		return models.ProjectDetail{}, nil, err
	}
	return detail, []events.Event{events.NewProjectUpdated(detail)}, nil
}

func (e *Engine) AddMember(ctx context.Context, tx store.Tx, projectID, userID int64) (models.User, []events.Event, error) {
	project, err := e.mustProject(ctx, tx, projectID)
	if err != nil {
		return models.User{}, nil, err
	}
	user, err := e.mustUser(ctx, tx, userID)
	if err != nil {
		return models.User{}, nil, err
	}

	ok, err := tx.IsMember(ctx, project.ID, user.ID)
	if err != nil {
		return models.User{}, nil, fmt.Errorf("check membership: %w", err)
	}
	if ok {
		return models.User{}, nil, userInProject(user.Name, project.Name)
	}

	if err := tx.AddMember(ctx, project.ID, user.ID); err != nil {
		return models.User{}, nil, fmt.Errorf("add member: %w", err)
	}
	return user, []events.Event{events.NewMemberAdded(project.ID, user)}, nil
}

// AddMemberByIdentity adds the user known by name and email, creating it
// when no exact match exists. The project is checked first so a missing
// project wins over any user-side failure.
func (e *Engine) AddMemberByIdentity(ctx context.Context, tx store.Tx, projectID int64, name, email string) (models.User, []events.Event, error) {
	if _, err := e.mustProject(ctx, tx, projectID); err != nil {
		return models.User{}, nil, err
	}

	user, evs, err := e.FindOrCreateByNameAndEmail(ctx, tx, name, email)
	if err != nil {
		return models.User{}, nil, err
	}

	user, added, err := e.AddMember(ctx, tx, projectID, user.ID)
	if err != nil {
		return models.User{}, nil, err
	}
	return user, append(evs, added...), nil
}

func (e *Engine) RemoveMember(ctx context.Context, tx store.Tx, projectID, userID int64) (models.User, []events.Event, error) {
	project, err := e.mustProject(ctx, tx, projectID)
	if err != nil {
		return models.User{}, nil, err
	}
	user, err := e.mustUser(ctx, tx, userID)
	if err != nil {
		return models.User{}, nil, err
	}

	ok, err := tx.IsMember(ctx, project.ID, user.ID)
	if err != nil {
		return models.User{}, nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return models.User{}, nil, userNotInProject(user.Name, project.Name)
	}

	if err := tx.RemoveMember(ctx, project.ID, user.ID); err != nil {
		return models.User{}, nil, fmt.Errorf("remove member: %w", err)
	}

	unassigned, err := e.UnassignUserInProject(ctx, tx, project.ID, user.ID)
	if err != nil {
		return models.User{}, nil, err
	}

	evs := []events.Event{events.NewMemberRemoved(project.ID, user)}
	for _, t := range unassigned {
		evs = append(evs, events.NewTaskUpdated(models.TaskDetail{Task: t, Project: &project}))
	}
	return user, evs, nil
}

// RemoveMemberByIdentity removes the user known by exact name and email.
// An unknown identity cannot be a member, so it fails with NotAMember and
// writes nothing.
func (e *Engine) RemoveMemberByIdentity(ctx context.Context, tx store.Tx, projectID int64, name, email string) (models.User, []events.Event, error) {
	project, err := e.mustProject(ctx, tx, projectID)
	if err != nil {
		return models.User{}, nil, err
	}

	user, err := e.FindExact(ctx, tx, name, email)
	if err != nil {
		return models.User{}, nil, err
	}
	if user == nil {
		return models.User{}, nil, userNotInProject(name, project.Name)
	}
	return e.RemoveMember(ctx, tx, project.ID, user.ID)
}

func (e *Engine) DeleteProject(ctx context.Context, tx store.Tx, id int64) (models.Project, []events.Event, error) {
	p, err := e.mustProject(ctx, tx, id)
	if err != nil {
		return models.Project{}, nil, err
	}

	if err := tx.DeleteProjectTasks(ctx, p.ID); err != nil {
		return models.Project{}, nil, fmt.Errorf("delete tasks of project %d: %w", p.ID, err)
	}
	if err := tx.RemoveProjectMembers(ctx, p.ID); err != nil {
		return models.Project{}, nil, fmt.Errorf("remove members of project %d: %w", p.ID, err)
	}
	if err := tx.DeleteProject(ctx, p.ID); err != nil {
		return models.Project{}, nil, fmt.Errorf("delete project %d: %w", p.ID, err)
	}

	e.logger.Debug("project deleted", zap.Int64("project_id", p.ID), zap.String("name", p.Name))
	return p, []events.Event{events.NewProjectDeleted(p)}, nil
}
