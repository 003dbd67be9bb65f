package rules

import (
	"context"
	"fmt"

	"github.com/michae-lzhou/Task-Board/internal/events"
	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
)

// TaskInput carries the writable task fields for create and update.
type TaskInput struct {
	Title       string
	Description *string
	Status      models.TaskStatus
	ProjectID   int64
	AssignedTo  *int64
}

func (e *Engine) CreateTask(ctx context.Context, tx store.Tx, in TaskInput) (models.TaskDetail, []events.Event, error) {
	status := in.Status.OrDefault()
	if !status.Valid() {
		return models.TaskDetail{}, nil, invalidStatus(in.Status)
	}

	project, err := e.mustProject(ctx, tx, in.ProjectID)
	if err != nil {
		return models.TaskDetail{}, nil, err
	}

	dupe, err := tx.FindTaskByTitle(ctx, project.ID, in.Title)
	if err != nil {
		return models.TaskDetail{}, nil, fmt.Errorf("find task by title: %w", err)
	}
	if dupe != nil {
		return models.TaskDetail{}, nil, duplicateTaskTitle(in.Title, project.Name)
	}

	if in.AssignedTo != nil {
		if err := e.checkAssignee(ctx, tx, project, *in.AssignedTo); err != nil {
			return models.TaskDetail{}, nil, err
		}
	}

	t, err := tx.InsertTask(ctx, models.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		ProjectID:   project.ID,
		AssignedTo:  in.AssignedTo,
	})
	if err != nil {
		return models.TaskDetail{}, nil, fmt.Errorf("insert task: %w", err)
	}

	detail, err := e.taskDetail(ctx, tx, t)
	if err != nil {
		return models.TaskDetail{}, nil, err
	}
	return detail, []events.Event{events.NewTaskCreated(detail)}, nil
}

func (e *Engine) GetTask(ctx context.Context, tx store.Tx, id int64) (models.TaskDetail, error) {
	t, err := e.mustTask(ctx, tx, id)
	if err != nil {
		return models.TaskDetail{}, err
	}
	return e.taskDetail(ctx, tx, t)
}

func (e *Engine) ListTasksByProject(ctx context.Context, tx store.Tx, projectID int64) ([]models.TaskDetail, error) {
	p, err := e.mustProject(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}

	tasks, err := tx.ListTasks(ctx, store.TaskFilter{ProjectID: p.ID})
	if err != nil {
		return nil, fmt.Errorf("list tasks of project %d: %w", p.ID, err)
	}

	out := make([]models.TaskDetail, 0, len(tasks))
	for _, t := range tasks {
		d, err := e.taskDetail(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// UpdateTask overwrites every field of the task. The reassignment check
// runs before anything looks at the requested project, so moving a task
// to a project that does not exist still reports the forbidden move.
func (e *Engine) UpdateTask(ctx context.Context, tx store.Tx, id int64, in TaskInput) (models.TaskDetail, []events.Event, error) {
	current, err := e.mustTask(ctx, tx, id)
	if err != nil {
		return models.TaskDetail{}, nil, err
	}

	if in.ProjectID != current.ProjectID {
		return models.TaskDetail{}, nil, movingTaskToNewProject(current.Title)
	}

	status := in.Status.OrDefault()
	if !status.Valid() {
		return models.TaskDetail{}, nil, invalidStatus(in.Status)
	}

	project, err := e.mustProject(ctx, tx, current.ProjectID)
	if err != nil {
		return models.TaskDetail{}, nil, err
	}

	if in.AssignedTo != nil {
		if err := e.checkAssignee(ctx, tx, project, *in.AssignedTo); err != nil {
			return models.TaskDetail{}, nil, err
		}
	}

	dupe, err := tx.FindTaskByTitle(ctx, project.ID, in.Title)
	if err != nil {
		return models.TaskDetail{}, nil, fmt.Errorf("find task by title: %w", err)
	}
	if dupe != nil && dupe.ID != current.ID {
		return models.TaskDetail{}, nil, duplicateTaskTitle(in.Title, project.Name)
	}

	updated := models.Task{
		ID:          current.ID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		ProjectID:   current.ProjectID,
		AssignedTo:  in.AssignedTo,
	}
	if err := tx.UpdateTask(ctx, updated); err != nil {
		return models.TaskDetail{}, nil, fmt.Errorf("update task %d: %w", current.ID, err)
	}

	detail, err := e.taskDetail(ctx, tx, updated)
	if err != nil {
		return models.TaskDetail{}, nil, err
	}
	return detail, []events.Event{events.NewTaskUpdated(detail)}, nil
}

func (e *Engine) DeleteTask(ctx context.Context, tx store.Tx, id int64) (models.Task, []events.Event, error) {
	t, err := e.mustTask(ctx, tx, id)
	if err != nil {
		return models.Task{}, nil, err
	}
	if err := tx.DeleteTask(ctx, t.ID); err != nil {
		return models.Task{}, nil, fmt.Errorf("delete task %d: %w", t.ID, err)
	}
	return t, []events.Event{events.NewTaskDeleted(t)}, nil
}
