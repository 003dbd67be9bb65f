//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
)

// startPostgres boots a throwaway postgres and returns a migrated store.
func startPostgres(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "board",
				"POSTGRES_USER":     "board",
				"POSTGRES_PASSWORD": "board",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	dsn := DSN("board", "board", fmt.Sprintf("%s:%s", host, port.Port()), "board", "disable")
	require.NoError(t, RunMigrations(dsn, logger))
	// second run is a no-op
	require.NoError(t, RunMigrations(dsn, logger))

	s, err := New(ctx, Options{DSN: dsn, MaxConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestPostgresStore(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	var (
		project models.Project
		user    models.User
		task    models.Task
	)

	t.Run("insert and read back", func(t *testing.T) {
		require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) (err error) {
			project, err = tx.InsertProject(ctx, "Alpha")
			if err != nil {
				return err
			}
			user, err = tx.InsertUser(ctx, "Ann", "ann@x.com")
			if err != nil {
				return err
			}
			if err = tx.AddMember(ctx, project.ID, user.ID); err != nil {
				return err
			}
			desc := "first"
			task, err = tx.InsertTask(ctx, models.Task{
				Title:       "T1",
				Description: &desc,
				ProjectID:   project.ID,
				AssignedTo:  &user.ID,
			})
			return err
		}))

		require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			got, err := tx.FindTask(ctx, task.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, models.StatusTodo, got.Status)
			assert.Equal(t, "first", *got.Description)
			assert.True(t, got.IsAssignedTo(user.ID))

			members, err := tx.ListMembers(ctx, project.ID)
			require.NoError(t, err)
			assert.Equal(t, []models.User{user}, members)

			byIdentity, err := tx.FindUserByNameAndEmail(ctx, "Ann", "ann@x.com")
			require.NoError(t, err)
			require.NotNil(t, byIdentity)
			assert.Equal(t, user.ID, byIdentity.ID)

			missing, err := tx.FindProject(ctx, 424242)
			require.NoError(t, err)
			assert.Nil(t, missing)
			return nil
		}))
	})

	t.Run("failed unit of work leaves nothing behind", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.InsertProject(ctx, "Ghost"); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			p, err := tx.FindProjectByName(ctx, "Ghost")
			require.NoError(t, err)
			assert.Nil(t, p)
			return nil
		}))
	})

	t.Run("filters tasks", func(t *testing.T) {
		require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			mine, err := tx.ListTasks(ctx, store.TaskFilter{AssignedTo: user.ID})
			require.NoError(t, err)
			assert.Len(t, mine, 1)

			none, err := tx.ListTasks(ctx, store.TaskFilter{ProjectID: project.ID + 1000})
			require.NoError(t, err)
			assert.Empty(t, none)
			return nil
		}))
	})

	t.Run("constraint violations map to sentinels", func(t *testing.T) {
		err := s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			_, err := tx.InsertProject(ctx, "Alpha")
			return err
		})
		require.ErrorIs(t, err, store.ErrUniqueViolation)

		err = s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.DeleteTask(ctx, 424242)
		})
		require.ErrorIs(t, err, store.ErrNoRows)
	})

	t.Run("project cascade", func(t *testing.T) {
		require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.DeleteProjectTasks(ctx, project.ID); err != nil {
				return err
			}
			if err := tx.RemoveProjectMembers(ctx, project.ID); err != nil {
				return err
			}
			return tx.DeleteProject(ctx, project.ID)
		}))

		require.NoError(t, s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			got, err := tx.FindTask(ctx, task.ID)
			require.NoError(t, err)
			assert.Nil(t, got)

			u, err := tx.FindUser(ctx, user.ID)
			require.NoError(t, err)
			assert.NotNil(t, u)
			return nil
		}))
	})
}
