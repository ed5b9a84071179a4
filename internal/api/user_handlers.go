package api

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/apperrors"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/repository"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/storage"
)

// POST /api/auth/register  {username, email, password}
func (s *Server) register(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, apperrors.ErrValidation)
	}
	u, err := s.users.Create(c.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		return s.failLogged(c, err, "register")
	}
	token, _, err := s.tokens.Issue(u.ID.Hex())
	if err != nil {
		return s.failLogged(c, err, "issue token")
	}
	return c.JSON(fiber.Map{"user": u, "token": token})
}

// POST /api/auth/login  {emailOrUsername, password}
func (s *Server) login(c *fiber.Ctx) error {
	var body struct {
		EmailOrUsername string `json:"emailOrUsername"`
		Password        string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, apperrors.ErrValidation)
	}
	u, err := s.users.FindByCredential(c.Context(), body.EmailOrUsername, body.Password)
	if err != nil {
		return s.failLogged(c, err, "login")
	}
	token, _, err := s.tokens.Issue(u.ID.Hex())
	if err != nil {
		return s.failLogged(c, err, "issue token")
	}
	return c.JSON(fiber.Map{"user": u, "token": token})
}

// GET /api/users?search=
func (s *Server) searchUsers(c *fiber.Ctx) error {
	users, err := s.users.Search(c.Context(), c.Query("search"), 20)
	if err != nil {
		return s.failLogged(c, err, "search users")
	}
	return c.JSON(users)
}

// GET /api/users/:id
func (s *Server) getProfile(c *fiber.Ctx) error {
	u, err := s.users.FindByID(c.Context(), c.Params("id"))
	if err != nil {
		return s.failLogged(c, err, "get profile")
	}
	return c.JSON(u)
}

// PUT /api/users/:id takes a multipart form with optional avatar file plus
// username/statusText/password fields. Callers may only update themselves.
func (s *Server) updateProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	if callerID(c) != id {
		return fail(c, apperrors.ErrForbidden)
	}

	upd := repository.UserUpdate{
		Username:   c.FormValue("username"),
		StatusText: c.FormValue("statusText"),
		Password:   c.FormValue("password"),
	}

	if fh, err := c.FormFile("avatar"); err == nil && fh != nil {
		if s.blobs == nil {
			return jsonError(c, fiber.StatusInternalServerError, "storage not configured")
		}
		if err := storage.ValidateFileHeader(fh, s.uploadMaxSize); err != nil {
			return fail(c, err)
		}
		f, err := fh.Open()
		if err != nil {
			return s.failLogged(c, err, "open avatar")
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return s.failLogged(c, err, "read avatar")
		}
		key := fmt.Sprintf("avatars/%s%s", uuid.NewString(), filepath.Ext(fh.Filename))
		url, err := s.blobs.Upload(c.Context(), key, fh.Header.Get("Content-Type"), data)
		if err != nil {
			return s.failLogged(c, err, "upload avatar")
		}
		upd.AvatarURL = url
	}

	u, err := s.users.Update(c.Context(), id, upd)
	if err != nil {
		return s.failLogged(c, err, "update profile")
	}
	return c.JSON(u)
}
