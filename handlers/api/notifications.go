package api

import (
	"bufio"
	"encoding/json"
	"sync"
	"time"

	"webmail/middleware"
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Notification types
const (
	EventNewEmail     = "new_email"
	EventEmailSent    = "email_sent"
	EventDeleted      = "deleted"
	EventStatusChange = "status_change"
)

// Notification represents a real-time notification
type Notification struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Time    time.Time              `json:"time"`
}

// Notifier delivers events to a user's open connections
type Notifier interface {
	Notify(userID int64, n Notification)
}

// NotificationHandler fans notifications out to SSE and WebSocket
// subscribers, keyed by user
type NotificationHandler struct {
	mu          sync.RWMutex
	subscribers map[int64]map[string]chan Notification
	keepAlive   time.Duration
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler() *NotificationHandler {
	return &NotificationHandler{
		subscribers: make(map[int64]map[string]chan Notification),
		keepAlive:   30 * time.Second,
	}
}

func (h *NotificationHandler) subscribe(userID int64) (string, chan Notification) {
	id := uuid.NewString()
	ch := make(chan Notification, 10)

	h.mu.Lock()
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[string]chan Notification)
	}
	h.subscribers[userID][id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *NotificationHandler) unsubscribe(userID int64, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[userID]; ok {
		if ch, ok := subs[id]; ok {
			close(ch)
			delete(subs, id)
		}
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
}

// Subscribers returns how many connections a user has open
func (h *NotificationHandler) Subscribers(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// Notify sends a notification to every subscriber of the user. Slow
// subscribers with a full buffer miss the event.
func (h *NotificationHandler) Notify(userID int64, n Notification) {
	n.ID = uuid.NewString()
	n.Time = time.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers[userID] {
		select {
		case ch <- n:
		default:
			utils.Log.Warn("Notification channel full for subscriber %s", id)
		}
	}
}

// HandleSSE streams notifications as Server-Sent Events
func (h *NotificationHandler) HandleSSE(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	subscriberID, messages := h.subscribe(userID)
	utils.Log.Info("SSE subscriber connected: %s (user %d)", subscriberID, userID)

	keepAlive := h.keepAlive
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.unsubscribe(userID, subscriberID)
			utils.Log.Info("SSE subscriber disconnected: %s", subscriberID)
		}()

		w.WriteString(": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case n, ok := <-messages:
				if !ok {
					return
				}
				data, err := json.Marshal(n)
				if err != nil {
					continue
				}
				w.WriteString("event: " + n.Type + "\n")
				w.WriteString("data: " + string(data) + "\n\n")
			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
			}
			// a failed flush means the client went away
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))

	return nil
}

// UpgradeWebSocket only lets websocket upgrade requests through
func UpgradeWebSocket(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleWebSocket pushes notifications over a websocket. It must run after
// RequireAuth so the user id is in the connection locals.
func (h *NotificationHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("userId").(int64)
	if userID == 0 {
		conn.Close()
		return
	}

	subscriberID, messages := h.subscribe(userID)
	utils.Log.Info("WebSocket subscriber connected: %s (user %d)", subscriberID, userID)

	// the reader notices when the client closes the socket
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.unsubscribe(userID, subscriberID)
		conn.Close()
		utils.Log.Info("WebSocket subscriber disconnected: %s", subscriberID)
	}()

	for {
		select {
		case n, ok := <-messages:
			if !ok {
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				utils.Log.Error("Failed to send WebSocket notification: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}

// NotifyNewEmail tells the user a message arrived in their mailbox
func NotifyNewEmail(n Notifier, userID, emailID int64, from, subject string) {
	n.Notify(userID, Notification{
		Type:    EventNewEmail,
		Message: "New email received",
		Data: map[string]interface{}{
			"emailId": emailID,
			"from":    from,
			"subject": subject,
		},
	})
}

// NotifyEmailSent reports the outcome of an SMTP submission
func NotifyEmailSent(n Notifier, userID, emailID int64, delivered bool) {
	n.Notify(userID, Notification{
		Type:    EventEmailSent,
		Message: "Email sent",
		Data: map[string]interface{}{
			"emailId":   emailID,
			"delivered": delivered,
		},
	})
}

// NotifyEmailDeleted sends a notification for a deleted email
func NotifyEmailDeleted(n Notifier, userID, emailID int64, permanent bool) {
	n.Notify(userID, Notification{
		Type:    EventDeleted,
		Message: "Email deleted",
		Data: map[string]interface{}{
			"emailId":   emailID,
			"permanent": permanent,
		},
	})
}

// NotifyStatusChange sends a notification for an email status change
func NotifyStatusChange(n Notifier, userID, emailID int64, status string) {
	n.Notify(userID, Notification{
		Type:    EventStatusChange,
		Message: "Email status changed",
		Data: map[string]interface{}{
			"emailId": emailID,
			"status":  status,
		},
	})
}
