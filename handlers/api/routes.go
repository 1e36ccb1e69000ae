package api

import (
	"time"

	"webmail/middleware"
	"webmail/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Handlers groups every API handler served by the application
type Handlers struct {
	Auth          *AuthHandler
	User          *UserHandler
	Folder        *FolderHandler
	Tag           *TagHandler
	Email         *EmailHandler
	Send          *SendHandler
	Search        *SearchHandler
	Draft         *DraftHandler
	Alias         *AliasHandler
	Blocked       *BlockedSenderHandler
	Attachment    *AttachmentHandler
	Storage       *StorageHandler
	DateTime      *DateTimeHandler
	Notifications *NotificationHandler
}

// Health reports that the server is up
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RegisterRoutes mounts the API on app
func RegisterRoutes(app fiber.Router, h *Handlers, auth *middleware.Auth, blocker *storage.IPBlocker) {
	app.Get("/health", Health)
	app.Get("/ws/notifications", auth.RequireAuth(), UpgradeWebSocket, websocket.New(h.Notifications.HandleWebSocket))

	api := app.Group("/api")
	api.Get("/health", Health)
	api.Get("/datetime/config", h.DateTime.Config)
	api.Get("/i18n/:lang", GetTranslations)

	// Public auth routes
	authRoutes := api.Group("/auth")
	authRoutes.Get("/status", h.Auth.Status)
	authRoutes.Get("/verify", h.Auth.Verify)
	authRoutes.Get("/csrf", h.Auth.CSRFToken)
	authRoutes.Post("/login", middleware.BlockedIPGuard(blocker), h.Auth.Login)
	authRoutes.Post("/logout", h.Auth.Logout)
	authRoutes.Post("/register", h.Auth.Register)

	protected := api.Group("", auth.RequireAuth())

	protected.Get("/notifications/stream", h.Notifications.HandleSSE)
	protected.Get("/smtp/test", h.Send.TestConnection)

	// User and profile
	protected.Get("/user/:id", h.User.GetUser)
	protected.Put("/user/:id", h.User.UpdateUser)
	protected.Put("/user/:id/password", h.User.UpdatePassword)
	protected.Post("/user/:id/profile-picture", h.User.UploadProfilePicture)
	protected.Delete("/user/:id/profile-picture", h.User.DeleteProfilePicture)
	protected.Get("/profile-picture/:userId/:filename", h.User.ServeProfilePicture)

	// Folders
	protected.Get("/folders", h.Folder.ListFolders)
	protected.Get("/folders/:userId", h.Folder.ListFolders)
	protected.Post("/folders", h.Folder.CreateFolder)
	protected.Put("/folders/:id", h.Folder.UpdateFolder)
	protected.Delete("/folders/:id", h.Folder.DeleteFolder)

	// Tags
	protected.Get("/tags", h.Tag.ListTags)
	protected.Get("/tags/:userId", h.Tag.ListTags)
	protected.Post("/tags", h.Tag.CreateTag)
	protected.Put("/tags/:id", h.Tag.UpdateTag)
	protected.Delete("/tags/:id", h.Tag.DeleteTag)
	protected.Get("/tags/:tagId/emails/:userId", h.Tag.TagEmails)
	protected.Get("/emails/:emailId/tags", h.Tag.EmailTags)
	protected.Post("/emails/:emailId/tags/:tagId", h.Tag.AddEmailTag)
	protected.Delete("/emails/:emailId/tags/:tagId", h.Tag.RemoveEmailTag)

	// Emails
	protected.Post("/emails/send", h.Send.Send)
	protected.Get("/emails/:userId", h.Email.ListEmails)
	protected.Post("/emails", h.Email.CreateEmail)
	protected.Get("/emails/:userId/folder/:folderType", h.Email.FolderEmails)
	protected.Put("/emails/:emailId/convert-to-sent", h.Email.ConvertToSent)
	protected.Delete("/emails/:emailId", h.Email.DeleteEmail)
	protected.Get("/email/:emailId", h.Email.GetEmail)
	protected.Put("/email/:emailId", h.Email.UpdateEmail)
	for _, register := range []func(string, ...fiber.Handler) fiber.Router{protected.Post, protected.Put} {
		register("/email/:emailId/star", h.Email.ToggleStar)
		register("/email/:emailId/read", h.Email.MarkRead)
		register("/email/:emailId/move", h.Email.MoveEmail)
	}
	protected.Get("/counts/:userId", h.Email.Counts)
	protected.Get("/search/:userId", h.Search.Search)

	// Drafts
	protected.Post("/drafts/active/:userId", h.Draft.CreateActive)
	protected.Get("/drafts/active/:userId", h.Draft.GetActive)
	protected.Delete("/drafts/active/:userId", h.Draft.ClearActive)

	// Aliases
	protected.Get("/aliases/:userId", h.Alias.ListAliases)
	protected.Post("/aliases", h.Alias.CreateAlias)
	protected.Get("/alias/:id", h.Alias.GetAlias)
	protected.Put("/alias/:id", h.Alias.UpdateAlias)
	protected.Delete("/alias/:id", h.Alias.DeleteAlias)
	protected.Patch("/alias/:id/toggle", h.Alias.ToggleAlias)

	// Blocked senders
	protected.Get("/blocked-senders/:userId", h.Blocked.List)
	protected.Post("/blocked-senders", h.Blocked.Create)
	protected.Delete("/blocked-senders/:id", h.Blocked.Delete)

	// Attachments and quota
	protected.Post("/attachments/upload/:userId", h.Attachment.Upload)
	protected.Delete("/attachments/remove/:userId/:filename", h.Attachment.Remove)
	protected.Get("/attachments/download/:userId/:filename", h.Attachment.Download)
	protected.Get("/storage/:userId", h.Storage.Info)
	protected.Get("/storage/:userId/check", h.Storage.Check)
}
