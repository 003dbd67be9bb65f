// Package models holds the board entities shared by the store, the rules
// engine and the HTTP layer.
package models

import "strings"

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// Valid reports whether s is one of the three known statuses.
func (s TaskStatus) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// OrDefault returns todo for an empty status.
func (s TaskStatus) OrDefault() TaskStatus {
	if s == "" {
		return StatusTodo
	}
	return s
}

type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
	ProjectID   int64      `json:"project_id"`
	AssignedTo  *int64     `json:"assigned_to"`
}

// ProjectDetail is a project with its current members resolved.
type ProjectDetail struct {
	Project
	Members []User `json:"members"`
}

// TaskDetail is a task with its owning project and assignee resolved.
type TaskDetail struct {
	Task
	Project      *Project `json:"project"`
	AssignedUser *User    `json:"assigned_user"`
}

// NormalizeEmail lowercases and trims an email before any comparison or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAssignedTo reports whether the task currently points at userID.
func (t Task) IsAssignedTo(userID int64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}
