// Package memory is an in-process store. Each unit of work runs against a
// private clone of the state, which replaces the live state only when the
// callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
)

type membership struct {
	projectID int64
	userID    int64
}

type state struct {
	projects map[int64]models.Project
	users    map[int64]models.User
	tasks    map[int64]models.Task
	members  map[membership]struct{}
	nextID   int64
}

func newState() state {
	return state{
		projects: map[int64]models.Project{},
		users:    map[int64]models.User{},
		tasks:    map[int64]models.Task{},
		members:  map[membership]struct{}{},
	}
}

func (s state) clone() state {
	c := newState()
	c.nextID = s.nextID
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tasks {
		c.tasks[k] = cloneTask(v)
	}
	for k := range s.members {
		c.members[k] = struct{}{}
	}
	return c
}

func cloneTask(t models.Task) models.Task {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		t.AssignedTo = &a
	}
	return t
}

type Store struct {
	mu    sync.Mutex
	state state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &tx{state: s.state.clone()}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit of work panicked: %v", r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) Close() {}

type tx struct {
	state state
}

func (t *tx) id() int64 {
	t.state.nextID++
	return t.state.nextID
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// projects

func (t *tx) FindProject(_ context.Context, id int64) (*models.Project, error) {
	p, ok := t.state.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *tx) FindProjectByName(_ context.Context, name string) (*models.Project, error) {
	for _, id := range sortedKeys(t.state.projects) {
		if p := t.state.projects[id]; p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

func (t *tx) ListProjects(_ context.Context) ([]models.Project, error) {
	out := make([]models.Project, 0, len(t.state.projects))
	for _, id := range sortedKeys(t.state.projects) {
		out = append(out, t.state.projects[id])
	}
	return out, nil
}

func (t *tx) InsertProject(_ context.Context, name string) (models.Project, error) {
	for _, p := range t.state.projects {
		if p.Name == name {
			return models.Project{}, fmt.Errorf("projects.name %q: %w", name, store.ErrUniqueViolation)
		}
	}
	p := models.Project{ID: t.id(), Name: name}
	t.state.projects[p.ID] = p
	return p, nil
}

func (t *tx) RenameProject(_ context.Context, id int64, name string) error {
	p, ok := t.state.projects[id]
	if !ok {
		return store.ErrNoRows
	}
	p.Name = name
	t.state.projects[id] = p
	return nil
}

func (t *tx) DeleteProject(_ context.Context, id int64) error {
	if _, ok := t.state.projects[id]; !ok {
		return store.ErrNoRows
	}
	delete(t.state.projects, id)
	return nil
}

// users

func (t *tx) FindUser(_ context.Context, id int64) (*models.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (t *tx) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, id := range sortedKeys(t.state.users) {
		if u := t.state.users[id]; u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (t *tx) FindUserByNameAndEmail(_ context.Context, name, email string) (*models.User, error) {
	for _, id := range sortedKeys(t.state.users) {
		if u := t.state.users[id]; u.Name == name && u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (t *tx) ListUsers(_ context.Context) ([]models.User, error) {
	out := make([]models.User, 0, len(t.state.users))
	for _, id := range sortedKeys(t.state.users) {
		out = append(out, t.state.users[id])
	}
	return out, nil
}

func (t *tx) InsertUser(_ context.Context, name, email string) (models.User, error) {
	for _, u := range t.state.users {
		if u.Email == email {
			return models.User{}, fmt.Errorf("users.email %q: %w", email, store.ErrUniqueViolation)
		}
	}
	u := models.User{ID: t.id(), Name: name, Email: email}
	t.state.users[u.ID] = u
	return u, nil
}

func (t *tx) DeleteUser(_ context.Context, id int64) error {
	if _, ok := t.state.users[id]; !ok {
		return store.ErrNoRows
	}
	delete(t.state.users, id)
	return nil
}

// members

func (t *tx) IsMember(_ context.Context, projectID, userID int64) (bool, error) {
	_, ok := t.state.members[membership{projectID, userID}]
	return ok, nil
}

func (t *tx) AddMember(_ context.Context, projectID, userID int64) error {
	if _, ok := t.state.projects[projectID]; !ok {
		return fmt.Errorf("project %d: %w", projectID, store.ErrForeignKey)
	}
	if _, ok := t.state.users[userID]; !ok {
		return fmt.Errorf("user %d: %w", userID, store.ErrForeignKey)
	}
	key := membership{projectID, userID}
	if _, ok := t.state.members[key]; ok {
		return fmt.Errorf("project_members (%d, %d): %w", projectID, userID, store.ErrUniqueViolation)
	}
	t.state.members[key] = struct{}{}
	return nil
}

func (t *tx) RemoveMember(_ context.Context, projectID, userID int64) error {
	key := membership{projectID, userID}
	if _, ok := t.state.members[key]; !ok {
		return store.ErrNoRows
	}
	delete(t.state.members, key)
	return nil
}

func (t *tx) ListMembers(_ context.Context, projectID int64) ([]models.User, error) {
	out := []models.User{}
	for _, id := range sortedKeys(t.state.users) {
		if _, ok := t.state.members[membership{projectID, id}]; ok {
			out = append(out, t.state.users[id])
		}
	}
	return out, nil
}

func (t *tx) RemoveProjectMembers(_ context.Context, projectID int64) error {
	for k := range t.state.members {
		if k.projectID == projectID {
			delete(t.state.members, k)
		}
	}
	return nil
}

func (t *tx) RemoveUserMemberships(_ context.Context, userID int64) error {
	for k := range t.state.members {
		if k.userID == userID {
			delete(t.state.members, k)
		}
	}
	return nil
}

// tasks

func (t *tx) FindTask(_ context.Context, id int64) (*models.Task, error) {
	task, ok := t.state.tasks[id]
	if !ok {
		return nil, nil
	}
	task = cloneTask(task)
	return &task, nil
}

func (t *tx) FindTaskByTitle(_ context.Context, projectID int64, title string) (*models.Task, error) {
	for _, id := range sortedKeys(t.state.tasks) {
		if task := t.state.tasks[id]; task.ProjectID == projectID && task.Title == title {
			task = cloneTask(task)
			return &task, nil
		}
	}
	return nil, nil
}

func (t *tx) ListTasks(_ context.Context, f store.TaskFilter) ([]models.Task, error) {
	out := []models.Task{}
	for _, id := range sortedKeys(t.state.tasks) {
		task := t.state.tasks[id]
		if f.ProjectID != 0 && task.ProjectID != f.ProjectID {
			continue
		}
		if f.AssignedTo != 0 && !task.IsAssignedTo(f.AssignedTo) {
			continue
		}
		out = append(out, cloneTask(task))
	}
	return out, nil
}

func (t *tx) checkTask(task models.Task) error {
	if _, ok := t.state.projects[task.ProjectID]; !ok {
		return fmt.Errorf("project %d: %w", task.ProjectID, store.ErrForeignKey)
	}
	if task.AssignedTo != nil {
		if _, ok := t.state.users[*task.AssignedTo]; !ok {
			return fmt.Errorf("user %d: %w", *task.AssignedTo, store.ErrForeignKey)
		}
	}
	for _, other := range t.state.tasks {
		if other.ID != task.ID && other.ProjectID == task.ProjectID && other.Title == task.Title {
			return fmt.Errorf("tasks (%d, %q): %w", task.ProjectID, task.Title, store.ErrUniqueViolation)
		}
	}
	return nil
}

func (t *tx) InsertTask(_ context.Context, task models.Task) (models.Task, error) {
	task.ID = 0
	if err := t.checkTask(task); err != nil {
		return models.Task{}, err
	}
	task.ID = t.id()
	task.Status = task.Status.OrDefault()
	t.state.tasks[task.ID] = cloneTask(task)
	return cloneTask(task), nil
}

func (t *tx) UpdateTask(_ context.Context, task models.Task) error {
	if _, ok := t.state.tasks[task.ID]; !ok {
		return store.ErrNoRows
	}
	if err := t.checkTask(task); err != nil {
		return err
	}
	task.Status = task.Status.OrDefault()
	t.state.tasks[task.ID] = cloneTask(task)
	return nil
}

func (t *tx) DeleteTask(_ context.Context, id int64) error {
	if _, ok := t.state.tasks[id]; !ok {
		return store.ErrNoRows
	}
	delete(t.state.tasks, id)
	return nil
}

func (t *tx) DeleteProjectTasks(_ context.Context, projectID int64) error {
	for id, task := range t.state.tasks {
		if task.ProjectID == projectID {
			delete(t.state.tasks, id)
		}
	}
	return nil
}
