package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/apperrors"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/models"
)

// conversationSummary is a conversation annotated for the list endpoint.
type conversationSummary struct {
	*models.Conversation
	LastMessage *models.Message `json:"lastMessage"`
	UnreadCount int64           `json:"unreadCount"`
}

// POST /api/conversations  {participantId}
func (s *Server) createConversation(c *fiber.Ctx) error {
	var body struct {
		ParticipantID string `json:"participantId"`
	}
	if err := c.BodyParser(&body); err != nil || body.ParticipantID == "" {
		return fail(c, apperrors.ErrValidation)
	}
	conv, err := s.convs.FindOrCreateDirect(c.Context(), callerID(c), body.ParticipantID)
	if err != nil {
		return s.failLogged(c, err, "create conversation")
	}
	return c.JSON(conv)
}

// GET /api/conversations
func (s *Server) listConversations(c *fiber.Ctx) error {
	me := callerID(c)
	convs, err := s.convs.ListForUser(c.Context(), me)
	if err != nil {
		return s.failLogged(c, err, "list conversations")
	}

	out := make([]conversationSummary, 0, len(convs))
	for _, conv := range convs {
		last, err := s.msgs.Latest(c.Context(), conv.ID.Hex())
		if err != nil {
			return s.failLogged(c, err, "latest message")
		}
		unread, err := s.msgs.UnreadCount(c.Context(), conv.ID.Hex(), me)
		if err != nil {
			return s.failLogged(c, err, "unread count")
		}
		out = append(out, conversationSummary{Conversation: conv, LastMessage: last, UnreadCount: unread})
	}
	return c.JSON(out)
}

// GET /api/conversations/:id/messages?limit=50&before=<message id or timestamp>
func (s *Server) getMessages(c *fiber.Ctx) error {
	conv, err := s.convs.Get(c.Context(), c.Params("id"))
	if err != nil {
		return s.failLogged(c, err, "get conversation")
	}
	if !conv.HasParticipant(callerID(c)) {
		return fail(c, apperrors.ErrForbidden)
	}

	limit := int64(c.QueryInt("limit", 0))
	msgs, err := s.msgs.Page(c.Context(), conv.ID.Hex(), limit, c.Query("before"))
	if err != nil {
		return s.failLogged(c, err, "page messages")
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return c.JSON(msgs)
}

// PATCH /api/conversations/:id/read
func (s *Server) markRead(c *fiber.Ctx) error {
	if err := s.svc.MarkRead(c.Context(), callerID(c), c.Params("id")); err != nil {
		return s.failLogged(c, err, "mark read")
	}
	return c.JSON(fiber.Map{"ok": true})
}

// POST /api/conversations/:id/messages  {text, attachments}
func (s *Server) createMessage(c *fiber.Ctx) error {
	var body struct {
		Text        string              `json:"text"`
		Attachments []models.Attachment `json:"attachments"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, apperrors.ErrValidation)
	}
	msg, err := s.svc.Send(c.Context(), callerID(c), c.Params("id"), body.Text, body.Attachments)
	if err != nil {
		return s.failLogged(c, err, "create message")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg})
}

// POST /api/conversations/group  {title, members}
func (s *Server) createGroup(c *fiber.Ctx) error {
	var body struct {
		Title   string   `json:"title"`
		Members []string `json:"members"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, apperrors.ErrValidation)
	}
	conv, err := s.convs.CreateGroup(c.Context(), callerID(c), body.Title, body.Members)
	if err != nil {
		return s.failLogged(c, err, "create group")
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

// PUT /api/conversations/group/:id/title  {title}
func (s *Server) updateGroupTitle(c *fiber.Ctx) error {
	var body struct {
		Title string `json:"title"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, apperrors.ErrValidation)
	}
	conv, err := s.convs.UpdateTitle(c.Context(), c.Params("id"), callerID(c), body.Title)
	if err != nil {
		return s.failLogged(c, err, "update title")
	}
	return c.JSON(conv)
}

// POST /api/conversations/group/:id/add  {userId}
func (s *Server) addGroupMember(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return fail(c, apperrors.ErrValidation)
	}
	conv, err := s.convs.AddMember(c.Context(), c.Params("id"), callerID(c), body.UserID)
	if err != nil {
		return s.failLogged(c, err, "add member")
	}
	return c.JSON(conv)
}

// POST /api/conversations/group/:id/remove  {userId}
func (s *Server) removeGroupMember(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return fail(c, apperrors.ErrValidation)
	}
	conv, deleted, err := s.convs.RemoveMember(c.Context(), c.Params("id"), callerID(c), body.UserID)
	if err != nil {
		return s.failLogged(c, err, "remove member")
	}
	if deleted {
		return c.JSON(fiber.Map{"deleted": true})
	}
	return c.JSON(conv)
}

// failLogged logs unexpected errors with context before mapping; sentinel
// errors pass through quietly.
func (s *Server) failLogged(c *fiber.Ctx, err error, op string) error {
	res := fail(c, err)
	if c.Response().StatusCode() == fiber.StatusInternalServerError {
		s.log.Errorw(op, "path", c.Path(), "err", err)
	}
	return res
}
