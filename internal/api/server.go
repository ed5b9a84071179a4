// Package api wires the REST surface. The message-posting handlers share
// internal/service with the websocket session handler, so REST-originated
// messages reach live rooms exactly like socket-originated ones.
package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/auth"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/repository"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/service"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/ws"
)

// BlobStore is the external blob collaborator: store bytes, get a URL back.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type Server struct {
	convs         repository.ConversationStore
	msgs          repository.MessageStore
	users         repository.UserStore
	svc           *service.Messaging
	tokens        *auth.TokenManager
	blobs         BlobStore
	log           *zap.SugaredLogger
	uploadMaxSize int64
}

func NewServer(convs repository.ConversationStore, msgs repository.MessageStore, users repository.UserStore,
	svc *service.Messaging, tokens *auth.TokenManager, blobs BlobStore,
	wsHandler *ws.Handler, log *zap.SugaredLogger, uploadMaxSize int64) *fiber.App {

	s := &Server{
		convs:         convs,
		msgs:          msgs,
		users:         users,
		svc:           svc,
		tokens:        tokens,
		blobs:         blobs,
		log:           log,
		uploadMaxSize: uploadMaxSize,
	}

	app := fiber.New(fiber.Config{BodyLimit: int(uploadMaxSize) + 1024*1024})
	app.Use(fiberlogger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", s.register)
	authGroup.Post("/login", s.login)

	users_ := api.Group("/users", AuthRequired(tokens))
	users_.Get("/", s.searchUsers)
	users_.Get("/:id", s.getProfile)
	users_.Put("/:id", s.updateProfile)

	conv := api.Group("/conversations", AuthRequired(tokens))
	conv.Post("/", s.createConversation)
	conv.Get("/", s.listConversations)
	conv.Get("/:id/messages", s.getMessages)
	conv.Patch("/:id/read", s.markRead)
	conv.Post("/:id/messages", s.createMessage)
	conv.Post("/group", s.createGroup)
	conv.Put("/group/:id/title", s.updateGroupTitle)
	conv.Post("/group/:id/add", s.addGroupMember)
	conv.Post("/group/:id/remove", s.removeGroupMember)

	upload := api.Group("/upload", AuthRequired(tokens))
	upload.Post("/", s.uploadFile)

	if wsHandler != nil {
		app.Get("/ws", wsHandler.Upgrade, websocket.New(wsHandler.Serve))
	}

	return app
}
