// Package events describes board change notifications and the dispatcher
// contract that delivers them to subscribers.
package events

import (
	"context"

	"github.com/michae-lzhou/Task-Board/internal/models"
)

type Kind string

const (
	ProjectCreated Kind = "project_created"
	ProjectUpdated Kind = "project_updated"
	ProjectDeleted Kind = "project_deleted"
	MemberAdded    Kind = "member_added"
	MemberRemoved  Kind = "member_removed"
	TaskCreated    Kind = "task_created"
	TaskUpdated    Kind = "task_updated"
	TaskDeleted    Kind = "task_deleted"
	UserCreated    Kind = "user_created"
	UserDeleted    Kind = "user_deleted"
)

// Event is the wire frame broadcast to subscribers.
type Event struct {
	Type Kind `json:"type"`
	Data any  `json:"data"`
}

// Dispatcher delivers events best-effort. Implementations must not block
// the caller on slow subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, evs ...Event)
}

type Nop struct{}

func (Nop) Dispatch(context.Context, ...Event) {}

// Multi hands every event to each dispatcher in order.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, evs ...Event) {
	if len(evs) == 0 {
		return
	}
	for _, d := range m {
		d.Dispatch(ctx, evs...)
	}
}

type MemberPayload struct {
	ProjectID int64       `json:"project_id"`
	User      models.User `json:"user"`
}

type DeletedNamed struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type DeletedTitled struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func NewProjectCreated(p models.ProjectDetail) Event {
	return Event{Type: ProjectCreated, Data: p}
}

func NewProjectUpdated(p models.ProjectDetail) Event {
	return Event{Type: ProjectUpdated, Data: p}
}

func NewProjectDeleted(p models.Project) Event {
	return Event{Type: ProjectDeleted, Data: DeletedNamed{ID: p.ID, Name: p.Name}}
}

func NewMemberAdded(projectID int64, u models.User) Event {
	return Event{Type: MemberAdded, Data: MemberPayload{ProjectID: projectID, User: u}}
}

func NewMemberRemoved(projectID int64, u models.User) Event {
	return Event{Type: MemberRemoved, Data: MemberPayload{ProjectID: projectID, User: u}}
}

func NewTaskCreated(t models.TaskDetail) Event {
	return Event{Type: TaskCreated, Data: t}
}

func NewTaskUpdated(t models.TaskDetail) Event {
	return Event{Type: TaskUpdated, Data: t}
}

func NewTaskDeleted(t models.Task) Event {
	return Event{Type: TaskDeleted, Data: DeletedTitled{ID: t.ID, Title: t.Title}}
}

func NewUserCreated(u models.User) Event {
	return Event{Type: UserCreated, Data: u}
}

func NewUserDeleted(u models.User) Event {
	return Event{Type: UserDeleted, Data: DeletedNamed{ID: u.ID, Name: u.Name}}
}
