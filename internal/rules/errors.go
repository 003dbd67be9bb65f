package rules

import (
	"errors"
	"fmt"

	"github.com/michae-lzhou/Task-Board/internal/models"
)

// Failure kinds. Match with errors.Is; every rules failure wraps exactly one.
var (
	ErrNotFound                     = errors.New("not found")
	ErrDuplicateName                = errors.New("duplicate name")
	ErrDuplicateTitle               = errors.New("duplicate title")
	ErrDuplicateEmail               = errors.New("duplicate email")
	ErrAlreadyMember                = errors.New("already a member")
	ErrNotAMember                   = errors.New("not a member")
	ErrAssigneeNotMember            = errors.New("assignee not a member")
	ErrProjectReassignmentForbidden = errors.New("project reassignment forbidden")
	ErrInvalidStatus                = errors.New("invalid status")
)

// Error is a rules failure carrying the values involved.
type Error struct {
	Kind    error
	Entity  string
	ID      int64
	Name    string
	Project string
	msg     string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.Kind }

func projectNotFound(id int64) *Error {
	return &Error{Kind: ErrNotFound, Entity: "project", ID: id, msg: fmt.Sprintf("Project %d not found.", id)}
}

func userNotFound(id int64) *Error {
	return &Error{Kind: ErrNotFound, Entity: "user", ID: id, msg: fmt.Sprintf("User %d not found.", id)}
}

func taskNotFound(id int64) *Error {
	return &Error{Kind: ErrNotFound, Entity: "task", ID: id, msg: fmt.Sprintf("Task %d not found.", id)}
}

func duplicateProjectName(name string) *Error {
	return &Error{
		Kind:   ErrDuplicateName,
		Entity: "project",
		Name:   name,
		msg:    fmt.Sprintf("Duplicate project name [%s]!", name),
	}
}

func duplicateTaskTitle(title, project string) *Error {
	return &Error{
		Kind:    ErrDuplicateTitle,
		Entity:  "task",
		Name:    title,
		Project: project,
		msg:     fmt.Sprintf("Duplicate task name [%s] in project [%s]!", title, project),
	}
}

func duplicateUserEmail(email string) *Error {
	return &Error{
		Kind:   ErrDuplicateEmail,
		Entity: "user",
		Name:   email,
		msg:    fmt.Sprintf("User with email %s already exists.", email),
	}
}

func userInProject(user, project string) *Error {
	return &Error{
		Kind:    ErrAlreadyMember,
		Entity:  "user",
		Name:    user,
		Project: project,
		msg:     fmt.Sprintf("User [%s] is already a member of project [%s].", user, project),
	}
}

func userNotInProject(user, project string) *Error {
	return &Error{
		Kind:    ErrNotAMember,
		Entity:  "user",
		Name:    user,
		Project: project,
		msg:     fmt.Sprintf("User [%s] is NOT a member of project [%s].", user, project),
	}
}

func assigneeNotMember(user, project string) *Error {
	return &Error{
		Kind:    ErrAssigneeNotMember,
		Entity:  "user",
		Name:    user,
		Project: project,
		msg:     fmt.Sprintf("User [%s] is not a member of project [%s]!", user, project),
	}
}

func movingTaskToNewProject(title string) *Error {
	return &Error{
		Kind:   ErrProjectReassignmentForbidden,
		Entity: "task",
		Name:   title,
		msg:    fmt.Sprintf("Not allowed to move task [%s] to a new project!", title),
	}
}

func invalidStatus(status models.TaskStatus) *Error {
	return &Error{
		Kind:   ErrInvalidStatus,
		Entity: "task",
		Name:   string(status),
		msg:    fmt.Sprintf("Invalid task status [%s]!", status),
	}
}

// IsRulesError reports whether err is an expected rules failure, as opposed
// to a store or infrastructure fault.
func IsRulesError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}
