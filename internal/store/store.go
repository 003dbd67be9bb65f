// Package store defines the entity store the rules engine runs against.
//
// Every logical operation gets exactly one unit of work: Store.Do opens it,
// hands a Tx to the callback and commits when the callback returns nil.
// Any error (or panic) discards everything the callback wrote.
//
// Find* methods return (nil, nil) when the row does not exist, so callers
// can chain existence checks without sentinel juggling.
package store

import (
	"context"
	"errors"

	"github.com/michae-lzhou/Task-Board/internal/models"
)

// Constraint errors raised by the engines themselves. The rules engine
// checks these conditions first, so they only surface on races.
var (
	ErrNoRows          = errors.New("no rows affected")
	ErrUniqueViolation = errors.New("unique constraint violated")
	ErrForeignKey      = errors.New("foreign key constraint violated")
)

type Store interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close()
}

type Tx interface {
	ProjectTx
	UserTx
	MemberTx
	TaskTx
}

type ProjectTx interface {
	FindProject(ctx context.Context, id int64) (*models.Project, error)
	FindProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	InsertProject(ctx context.Context, name string) (models.Project, error)
	RenameProject(ctx context.Context, id int64, name string) error
	DeleteProject(ctx context.Context, id int64) error
}

type UserTx interface {
	FindUser(ctx context.Context, id int64) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByNameAndEmail(ctx context.Context, name, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	InsertUser(ctx context.Context, name, email string) (models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type MemberTx interface {
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
	AddMember(ctx context.Context, projectID, userID int64) error
	RemoveMember(ctx context.Context, projectID, userID int64) error
	ListMembers(ctx context.Context, projectID int64) ([]models.User, error)
	// RemoveProjectMembers drops every link of a project.
	RemoveProjectMembers(ctx context.Context, projectID int64) error
	// RemoveUserMemberships drops every link of a user.
	RemoveUserMemberships(ctx context.Context, userID int64) error
}

// TaskFilter narrows task listings; zero fields are ignored.
type TaskFilter struct {
	ProjectID  int64
	AssignedTo int64
}

type TaskTx interface {
	FindTask(ctx context.Context, id int64) (*models.Task, error)
	FindTaskByTitle(ctx context.Context, projectID int64, title string) (*models.Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error)
	InsertTask(ctx context.Context, t models.Task) (models.Task, error)
	// UpdateTask overwrites every mutable column of t.ID.
	UpdateTask(ctx context.Context, t models.Task) error
	DeleteTask(ctx context.Context, id int64) error
	DeleteProjectTasks(ctx context.Context, projectID int64) error
}
