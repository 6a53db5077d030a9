package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/pkg/session"
)

func (s *Server) handleParams(c *fiber.Ctx) error {
	return c.JSON(s.source.Snapshot().Params)
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	return c.JSON(s.source.Snapshot())
}

func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.source.Config())
}

// handleStats reports tracker counters, hub state and any registered extras.
func (s *Server) handleStats(c *fiber.Ctx) error {
	out := fiber.Map{
		"tracker": s.source.Stats(),
		"clients": s.params.ClientCount(),
		"dropped": s.params.Dropped(),
	}
	s.mu.RLock()
	for name, fn := range s.extra {
		out[name] = fn()
	}
	s.mu.RUnlock()
	return c.JSON(out)
}

func (s *Server) sessionStore(c *fiber.Ctx) (*session.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sessions == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "recording is not enabled")
	}
	return s.sessions, nil
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	store, err := s.sessionStore(c)
	if err != nil {
		return err
	}
	list, err := store.List(c.UserContext())
	if err != nil {
		return err
	}
	if list == nil {
		list = []session.Session{}
	}
	return c.JSON(list)
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	store, err := s.sessionStore(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	sess, err := store.Get(c.UserContext(), id)
	if errors.Is(err, session.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(sess)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	store, err := s.sessionStore(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	err = store.Delete(c.UserContext(), id)
	if errors.Is(err, session.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
