package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-interview/pkg/engine"
	"github.com/teslashibe/go-interview/pkg/export"
	"github.com/teslashibe/go-interview/pkg/hub"
	"github.com/teslashibe/go-interview/pkg/interview"
	"github.com/teslashibe/go-interview/pkg/rtc"
)

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound), errors.Is(err, interview.ErrNoPeer):
		return fiber.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateSession), errors.Is(err, interview.ErrSessionActive):
		return fiber.StatusConflict
	case errors.Is(err, interview.ErrNoContext), errors.Is(err, interview.ErrProfileNotFound),
		errors.Is(err, rtc.ErrBadOffer):
		return fiber.StatusBadRequest
	case errors.Is(err, interview.ErrRTCUnsupported):
		return fiber.StatusNotImplemented
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
}

// handleStatus reports server health
func (s *Server) handleStatus(c *fiber.Ctx) error {
	status := fiber.Map{
		"sessions": len(s.sessions.List()),
	}
	if s.remote != nil {
		status["clients"] = s.remote.Count()
	}
	if s.events != nil {
		status["dashboards"] = s.events.ClientCount()
	}
	if s.export != nil {
		status["export_connected"] = s.export.Connected()
	}
	return c.JSON(status)
}

// handleListProfiles returns the interview profiles
func (s *Server) handleListProfiles(c *fiber.Ctx) error {
	profiles := s.sessions.Profiles().List()
	if profiles == nil {
		profiles = []*interview.Profile{}
	}
	return c.JSON(profiles)
}

// handleCreateSession creates and starts a session
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req interview.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}

	e, err := s.sessions.Create(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}

	v, err := s.sessions.View(e.Session().ID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	return c.JSON(s.sessions.List())
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	v, err := s.sessions.View(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(v)
}

// handleEndSession ends a session; ending a finished one is a no-op
func (s *Server) handleEndSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.sessions.End(id); err != nil && !errors.Is(err, engine.ErrNotStarted) {
		var finErr *engine.FinalizationError
		if !errors.As(err, &finErr) {
			return fail(c, err)
		}
		s.logger.Warn("finalization failed", "session", id, "error", err)
	}

	v, err := s.sessions.View(id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(v)
}

func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	turns, err := s.sessions.Transcript(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"sessionId": c.Params("id"),
		"turns":     turns,
	})
}

func (s *Server) handleClearTranscript(c *fiber.Ctx) error {
	if err := s.sessions.Clear(c.UserContext(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleRTCOffer answers a browser's SDP offer for server-side capture
func (s *Server) handleRTCOffer(c *fiber.Ctx) error {
	var offer webrtc.SessionDescription
	if err := c.BodyParser(&offer); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed offer"})
	}

	answer, err := s.sessions.Answer(c.UserContext(), c.Params("id"), offer)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(answer)
}

// handleExportLink returns the Google Doc a finished session was exported to
func (s *Server) handleExportLink(c *fiber.Ctx) error {
	docID, ok := s.export.DocID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not exported"})
	}
	return c.JSON(fiber.Map{
		"docId": docID,
		"url":   export.DocURL(docID),
	})
}

// handleEventsWS streams engine events, optionally for one ?session=
func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.events, c, c.Query("session"))
	client.Run()
}
