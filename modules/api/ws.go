package api

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/khalidAdell/quick-task/modules/live"
	"github.com/khalidAdell/quick-task/modules/task"
)

const wsWriteTimeout = 10 * time.Second

// requireUpgrade rejects plain HTTP requests on websocket routes.
func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// queryTokenAuth validates the ?token= parameter before the upgrade, since
// browsers cannot set headers on websocket requests.
func (m *APIModule) queryTokenAuth(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "token query parameter is required",
		})
	}
	principal, err := m.identityPort.ValidateToken(c.UserContext(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired token",
		})
	}
	c.Locals(PrincipalContextKey, principal)
	return c.Next()
}

// handleTaskSocket handles GET /ws/tasks/:id. The current snapshot is sent
// first, then every newer snapshot until the task is deleted or the client leaves.
func (m *APIModule) handleTaskSocket(c *websocket.Conn) {
	taskID := c.Params("id")

	// Subscribe before reading the task so no change between the read and
	// the subscription is lost. Only the newest pending snapshot is kept.
	updates := make(chan task.Snapshot, 1)
	sub := m.watcher.Subscribe(taskID, 0, func(s task.Snapshot) {
		for {
			select {
			case updates <- s:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer sub.Unsubscribe()

	current, err := m.taskPort.Get(context.Background(), taskID)
	if err != nil {
		log.Printf("[api] Task socket for %s rejected: %v", taskID, err)
		_ = c.WriteJSON(ErrorResponse{Error: "not_found", Message: "task not found"})
		return
	}
	sent := current.Version
	if err := c.WriteJSON(live.NewTaskMessage(task.Snapshot{Task: &current})); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case snap := <-updates:
			if snap.Version() <= sent {
				continue
			}
			sent = snap.Version()
			_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.WriteJSON(live.NewTaskMessage(snap)); err != nil {
				log.Printf("[api] Task socket write for %s failed: %v", taskID, err)
				return
			}
			if snap.Deleted {
				_ = c.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task deleted"))
				return
			}
		}
	}
}

// handleNotificationSocket handles GET /ws/notifications. The connection is
// registered with the hub and receives the caller's notifications as they are created.
func (m *APIModule) handleNotificationSocket(c *websocket.Conn) {
	p := principalFromConn(c)
	client := live.NewClient(uuid.NewString(), p.ID, c)

	m.hub.Register(client)
	defer m.hub.Unregister(client)

	log.Printf("[api] Notification socket connected: %s (user %s)", client.ID, p.ID)
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Read error from %s: %v", client.ID, err)
			}
			break
		}
	}
	log.Printf("[api] Notification socket disconnected: %s", client.ID)
}
