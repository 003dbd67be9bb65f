package mboard

import (
	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/rules"
)

type ProjectRequest struct {
	Name string `json:"name" form:"name" binding:"required,max=255"`
}

// IdentityRequest names a user by the (name, email) pair.
type IdentityRequest struct {
	Name  string `json:"name" form:"name" binding:"required,max=255"`
	Email string `json:"email" form:"email" binding:"required,email"`
}

type UserRequest = IdentityRequest

type MemberRequest struct {
	UserID int64 `json:"user_id" form:"user_id" binding:"required,gt=0"`
}

type TaskRequest struct {
	Title       string            `json:"title" form:"title" binding:"required,max=255"`
	Description *string           `json:"description" form:"description"`
	Status      models.TaskStatus `json:"status" form:"status" binding:"omitempty,oneof=todo in_progress done"`
	ProjectID   int64             `json:"project_id" form:"project_id" binding:"required,gt=0"`
	AssignedTo  *int64            `json:"assigned_to" form:"assigned_to" binding:"omitempty,gt=0"`
}

func (r TaskRequest) input() rules.TaskInput {
	return rules.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		ProjectID:   r.ProjectID,
		AssignedTo:  r.AssignedTo,
	}
}
