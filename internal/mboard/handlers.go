package mboard

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/michae-lzhou/Task-Board/internal/events"
	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
	"github.com/michae-lzhou/Task-Board/internal/utils"
)

type op func(ctx context.Context, tx store.Tx) ([]events.Event, error)

// run executes fn in one unit of work and publishes its events after the
// commit. It writes the error response itself and reports success.
func (s *Server) run(c *gin.Context, fn op) bool {
	var evs []events.Event
	err := s.store.Do(c.Request.Context(), func(ctx context.Context, tx store.Tx) error {
		var err error
		evs, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		s.respondError(c, err)
		return false
	}

	s.dispatcher.Dispatch(context.WithoutCancel(c.Request.Context()), evs...)
	return true
}

// pathID reads a positive id path parameter, answering 400 when it is not one.
func (s *Server) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		s.invalidInput(c, fmt.Errorf("%s %q: %w", name, c.Param(name), err))
		return 0, false
	}
	return id, true
}

func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.invalidInput(c, err)
		return false
	}
	return true
}

func rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello from backend"})
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// projects

func (s *Server) createProjectHandler(c *gin.Context) {
	var req ProjectRequest
	if !s.bind(c, &req) {
		return
	}

	var out models.ProjectDetail
	ok := s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		out, evs, err = s.rules.CreateProject(ctx, tx, req.Name)
		return evs, err
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listProjectsHandler(c *gin.Context) {
	var out []models.ProjectDetail
	ok := s.run(c, func(ctx context.Context, tx store.Tx) (_ []events.Event, err error) {
		out, err = s.rules.ListProjects(ctx, tx)
		return nil, err
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getProjectHandler(c *gin.Context) {
	id, ok := s.pathID(c, "project_id")
	if !ok {
		return
	}

	var out models.ProjectDetail
	if !s.run(c, func(ctx context.Context, tx store.Tx) (_ []events.Event, err error) {
		out, err = s.rules.GetProject(ctx, tx, id)
		return nil, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) renameProjectHandler(c *gin.Context) {
	id, ok := s.pathID(c, "project_id")
	if !ok {
		return
	}
	var req ProjectRequest
	if !s.bind(c, &req) {
		return
	}

	var out models.ProjectDetail
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		out, evs, err = s.rules.RenameProject(ctx, tx, id, req.Name)
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteProjectHandler(c *gin.Context) {
	id, ok := s.pathID(c, "project_id")
	if !ok {
		return
	}

	var deleted models.Project
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		deleted, evs, err = s.rules.DeleteProject(ctx, tx, id)
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Project [%s] deleted", deleted.Name)})
}

func (s *Server) addMemberByIdentityHandler(c *gin.Context) {
	id, ok := s.pathID(c, "project_id")
	if !ok {
		return
	}
	var req IdentityRequest
	if !s.bind(c, &req) {
		return
	}

	var out models.User
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		out, evs, err = s.rules.AddMemberByIdentity(ctx, tx, id, req.Name, req.Email)
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) removeMemberByIdentityHandler(c *gin.Context) {
	id, ok := s.pathID(c, "project_id")
	if !ok {
		return
	}
	var req IdentityRequest
	if !s.bind(c, &req) {
		return
	}

	var out models.User
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		out, evs, err = s.rules.RemoveMemberByIdentity(ctx, tx, id, req.Name, req.Email)
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) addMemberHandler(c *gin.Context) {
	id, ok := s.pathID(c, "project_id")
	if !ok {
		return
	}
	var req MemberRequest
	if !s.bind(c, &req) {
		return
	}

	var out models.User
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		out, evs, err = s.rules.AddMember(ctx, tx, id, req.UserID)
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) removeMemberHandler(c *gin.Context) {
	projectID, ok := s.pathID(c, "project_id")
	if !ok {
		return
	}
	userID, ok := s.pathID(c, "user_id")
	if !ok {
		return
	}

	var out models.User
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		out, evs, err = s.rules.RemoveMember(ctx, tx, projectID, userID)
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) projectTasksHandler(c *gin.Context) {
	id, ok := s.pathID(c, "project_id")
	if !ok {
		return
	}

	var out []models.TaskDetail
	if !s.run(c, func(ctx context.Context, tx store.Tx) (_ []events.Event, err error) {
		out, err = s.rules.ListTasksByProject(ctx, tx, id)
		return nil, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) projectUsersHandler(c *gin.Context) {
	id, ok := s.pathID(c, "project_id")
	if !ok {
		return
	}

	var out []models.User
	if !s.run(c, func(ctx context.Context, tx store.Tx) (_ []events.Event, err error) {
		out, err = s.rules.ListUsersByProject(ctx, tx, id)
		return nil, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

// tasks

func (s *Server) createTaskHandler(c *gin.Context) {
	var req TaskRequest
	if !s.bind(c, &req) {
		return
	}

	var out models.TaskDetail
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		out, evs, err = s.rules.CreateTask(ctx, tx, req.input())
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getTaskHandler(c *gin.Context) {
	id, ok := s.pathID(c, "task_id")
	if !ok {
		return
	}

	var out models.TaskDetail
	if !s.run(c, func(ctx context.Context, tx store.Tx) (_ []events.Event, err error) {
		out, err = s.rules.GetTask(ctx, tx, id)
		return nil, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateTaskHandler(c *gin.Context) {
	id, ok := s.pathID(c, "task_id")
	if !ok {
		return
	}
	var req TaskRequest
	if !s.bind(c, &req) {
		return
	}

	var out models.TaskDetail
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		out, evs, err = s.rules.UpdateTask(ctx, tx, id, req.input())
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteTaskHandler(c *gin.Context) {
	id, ok := s.pathID(c, "task_id")
	if !ok {
		return
	}

	var deleted models.Task
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		deleted, evs, err = s.rules.DeleteTask(ctx, tx, id)
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Task [%s] deleted", deleted.Title)})
}

// users

func (s *Server) createUserHandler(c *gin.Context) {
	var req UserRequest
	if !s.bind(c, &req) {
		return
	}

	var out models.User
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		out, evs, err = s.rules.CreateUser(ctx, tx, req.Name, req.Email)
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listUsersHandler(c *gin.Context) {
	var out []models.User
	if !s.run(c, func(ctx context.Context, tx store.Tx) (_ []events.Event, err error) {
		out, err = s.rules.ListUsers(ctx, tx)
		return nil, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getUserHandler(c *gin.Context) {
	id, ok := s.pathID(c, "user_id")
	if !ok {
		return
	}

	var out models.User
	if !s.run(c, func(ctx context.Context, tx store.Tx) (_ []events.Event, err error) {
		out, err = s.rules.GetUser(ctx, tx, id)
		return nil, err
	}) {
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) deleteUserHandler(c *gin.Context) {
	id, ok := s.pathID(c, "user_id")
	if !ok {
		return
	}

	var deleted models.User
	if !s.run(c, func(ctx context.Context, tx store.Tx) (evs []events.Event, err error) {
		deleted, evs, err = s.rules.DeleteUser(ctx, tx, id)
		return evs, err
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("User [%s] deleted", deleted.Name)})
}
