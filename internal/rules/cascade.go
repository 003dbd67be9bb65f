package rules

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
)

// UnassignUserInProject clears the assignee of every task in projectID that
// points at userID and returns those tasks as they are after the change.
func (e *Engine) UnassignUserInProject(ctx context.Context, tx store.Tx, projectID, userID int64) ([]models.Task, error) {
	return e.unassign(ctx, tx, store.TaskFilter{ProjectID: projectID, AssignedTo: userID})
}

// UnassignUser is UnassignUserInProject across every project.
func (e *Engine) UnassignUser(ctx context.Context, tx store.Tx, userID int64) ([]models.Task, error) {
	return e.unassign(ctx, tx, store.TaskFilter{AssignedTo: userID})
}

func (e *Engine) unassign(ctx context.Context, tx store.Tx, f store.TaskFilter) ([]models.Task, error) {
	// a zero assignee would match every task
	if f.AssignedTo == 0 {
		return nil, nil
	}

	tasks, err := tx.ListTasks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list assigned tasks: %w", err)
	}

	for i := range tasks {
		tasks[i].AssignedTo = nil
		if err := tx.UpdateTask(ctx, tasks[i]); err != nil {
			return nil, fmt.Errorf("unassign task %d: %w", tasks[i].ID, err)
		}
	}

	if len(tasks) > 0 {
		e.logger.Debug("tasks unassigned",
			zap.Int64("user_id", f.AssignedTo),
			zap.Int64("project_id", f.ProjectID),
			zap.Int("count", len(tasks)),
		)
	}
	return tasks, nil
}
