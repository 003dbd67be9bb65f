package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
)

type tx struct {
	tx pgx.Tx
}

func (t *tx) exec(ctx context.Context, sql string, args ...any) error {
	ct, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return translate(err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNoRows
	}
	return nil
}

// one scans a single row, turning pgx.ErrNoRows into a nil result.
func one[T any](row pgx.Row, scan func(pgx.Row, *T) error) (*T, error) {
	var v T
	if err := scan(row, &v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func scanProject(row pgx.Row, p *models.Project) error {
	return row.Scan(&p.ID, &p.Name)
}

func scanUser(row pgx.Row, u *models.User) error {
	return row.Scan(&u.ID, &u.Name, &u.Email)
}

func scanTask(row pgx.Row, t *models.Task) error {
	return row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.ProjectID, &t.AssignedTo)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row, *T) error) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var v T
		if err := scan(rows, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// projects

func (t *tx) FindProject(ctx context.Context, id int64) (*models.Project, error) {
	return one(t.tx.QueryRow(ctx, `SELECT id, name FROM projects WHERE id = $1`, id), scanProject)
}

func (t *tx) FindProjectByName(ctx context.Context, name string) (*models.Project, error) {
	return one(t.tx.QueryRow(ctx, `SELECT id, name FROM projects WHERE name = $1`, name), scanProject)
}

func (t *tx) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, name FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProject)
}

func (t *tx) InsertProject(ctx context.Context, name string) (models.Project, error) {
	p := models.Project{Name: name}
	err := t.tx.QueryRow(ctx,
		`INSERT INTO projects (name) VALUES ($1) RETURNING id`,
		name,
	).Scan(&p.ID)
	if err != nil {
		return models.Project{}, translate(err)
	}
	return p, nil
}

func (t *tx) RenameProject(ctx context.Context, id int64, name string) error {
	return t.exec(ctx, `UPDATE projects SET name = $1 WHERE id = $2`, name, id)
}

func (t *tx) DeleteProject(ctx context.Context, id int64) error {
	return t.exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
}

// users

func (t *tx) FindUser(ctx context.Context, id int64) (*models.User, error) {
	return one(t.tx.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id), scanUser)
}

func (t *tx) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return one(t.tx.QueryRow(ctx, `SELECT id, name, email FROM users WHERE email = $1`, email), scanUser)
}

func (t *tx) FindUserByNameAndEmail(ctx context.Context, name, email string) (*models.User, error) {
	return one(t.tx.QueryRow(ctx, `
		SELECT id, name, email FROM users
		WHERE name = $1 AND email = $2
		ORDER BY id
		LIMIT 1
	`, name, email), scanUser)
}

func (t *tx) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

func (t *tx) InsertUser(ctx context.Context, name, email string) (models.User, error) {
	u := models.User{Name: name, Email: email}
	err := t.tx.QueryRow(ctx,
		`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`,
		name, email,
	).Scan(&u.ID)
	if err != nil {
		return models.User{}, translate(err)
	}
	return u, nil
}

func (t *tx) DeleteUser(ctx context.Context, id int64) error {
	return t.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// members

func (t *tx) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM project_members
			WHERE project_id = $1 AND user_id = $2
		)
	`, projectID, userID).Scan(&exists)
	return exists, err
}

func (t *tx) AddMember(ctx context.Context, projectID, userID int64) error {
	return t.exec(ctx, `
		INSERT INTO project_members (project_id, user_id)
		VALUES ($1, $2)
	`, projectID, userID)
}

func (t *tx) RemoveMember(ctx context.Context, projectID, userID int64) error {
	return t.exec(ctx, `
		DELETE FROM project_members
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
}

func (t *tx) ListMembers(ctx context.Context, projectID int64) ([]models.User, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT u.id, u.name, u.email
		FROM users u
		JOIN project_members m ON m.user_id = u.id
		WHERE m.project_id = $1
		ORDER BY u.id
	`, projectID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

func (t *tx) RemoveProjectMembers(ctx context.Context, projectID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1`, projectID)
	return err
}

func (t *tx) RemoveUserMemberships(ctx context.Context, userID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM project_members WHERE user_id = $1`, userID)
	return err
}

// tasks

const taskColumns = `id, title, description, status, project_id, assigned_to`

func (t *tx) FindTask(ctx context.Context, id int64) (*models.Task, error) {
	return one(t.tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id), scanTask)
}

func (t *tx) FindTaskByTitle(ctx context.Context, projectID int64, title string) (*models.Task, error) {
	return one(t.tx.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 AND title = $2`,
		projectID, title,
	), scanTask)
}

func (t *tx) ListTasks(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE ($1::bigint = 0 OR project_id = $1::bigint)
		  AND ($2::bigint = 0 OR assigned_to = $2::bigint)
		ORDER BY id
	`, f.ProjectID, f.AssignedTo)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTask)
}

func (t *tx) InsertTask(ctx context.Context, task models.Task) (models.Task, error) {
	task.Status = task.Status.OrDefault()
	err := t.tx.QueryRow(ctx, `
		INSERT INTO tasks (title, description, status, project_id, assigned_to)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, task.Title, task.Description, task.Status, task.ProjectID, task.AssignedTo).Scan(&task.ID)
	if err != nil {
		return models.Task{}, translate(err)
	}
	return task, nil
}

func (t *tx) UpdateTask(ctx context.Context, task models.Task) error {
	return t.exec(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, project_id = $4, assigned_to = $5
		WHERE id = $6
	`, task.Title, task.Description, task.Status.OrDefault(), task.ProjectID, task.AssignedTo, task.ID)
}

func (t *tx) DeleteTask(ctx context.Context, id int64) error {
	return t.exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
}

func (t *tx) DeleteProjectTasks(ctx context.Context, projectID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID)
	return err
}
