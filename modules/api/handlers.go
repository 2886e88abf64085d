package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/khalidAdell/quick-task/modules/identity"
	"github.com/khalidAdell/quick-task/modules/notification"
	"github.com/khalidAdell/quick-task/modules/task"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App, bidLimiter fiber.Handler) {
	app.Get("/health", m.healthHandler)

	ws := app.Group("/ws", requireUpgrade)
	ws.Get("/tasks/:id", websocket.New(m.handleTaskSocket))
	ws.Get("/notifications", m.queryTokenAuth, websocket.New(m.handleNotificationSocket))

	api := app.Group("/api/v1")
	auth := AuthMiddleware(m.identityPort)
	optional := OptionalAuthMiddleware(m.identityPort)

	// Public auth routes
	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", m.register)
	authRoutes.Post("/login", m.login)
	authRoutes.Post("/refresh", m.refresh)

	profile := api.Group("/profile", auth)
	profile.Get("/", m.getProfile)
	profile.Put("/", m.updateProfile)
	profile.Get("/dashboard", m.dashboard)

	tasks := api.Group("/tasks")
	tasks.Get("/", optional, m.listTasks)
	tasks.Get("/:id", optional, m.getTask)
	tasks.Post("/", auth, m.createTask)
	tasks.Put("/:id", auth, m.editTask)
	tasks.Delete("/:id", auth, m.deleteTask)
	tasks.Post("/:id/bids", auth, bidLimiter, m.submitBid)
	tasks.Put("/:id/bids/:bidId", auth, m.editBid)
	tasks.Delete("/:id/bids/:bidId", auth, m.deleteBid)
	tasks.Post("/:id/bids/:bidId/select", auth, m.selectBid)
	tasks.Post("/:id/complete", auth, m.completeTask)
	tasks.Post("/:id/payment", auth, m.releasePayment)

	notifications := api.Group("/notifications", auth)
	notifications.Get("/", m.listNotifications)
	notifications.Post("/:id/read", m.markNotificationRead)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	details := fiber.Map{"module": "api"}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"details": details,
	})
}

// register handles POST /api/v1/auth/register.
func (m *APIModule) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := m.identityPort.Register(c.UserContext(), identity.RegisterRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		return handleIdentityError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// login handles POST /api/v1/auth/login.
func (m *APIModule) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	resp, err := m.identityPort.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return handleIdentityError(c, err)
	}
	return c.JSON(resp)
}

// refresh handles POST /api/v1/auth/refresh.
func (m *APIModule) refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	resp, err := m.identityPort.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return handleIdentityError(c, err)
	}
	return c.JSON(resp)
}

// getProfile handles GET /api/v1/profile.
func (m *APIModule) getProfile(c *fiber.Ctx) error {
	resp, err := m.identityPort.GetUser(c.UserContext(), principalFrom(c).ID)
	if err != nil {
		return handleIdentityError(c, err)
	}
	return c.JSON(resp)
}

// updateProfile handles PUT /api/v1/profile.
func (m *APIModule) updateProfile(c *fiber.Ctx) error {
	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	resp, err := m.identityPort.UpdateProfile(c.UserContext(), identity.UpdateProfileRequest{
		UserID:      principalFrom(c).ID,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		return handleIdentityError(c, err)
	}
	return c.JSON(resp)
}

// dashboard handles GET /api/v1/profile/dashboard.
func (m *APIModule) dashboard(c *fiber.Ctx) error {
	p := principalFrom(c)
	resp, err := m.taskPort.Dashboard(c.UserContext(), p)
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.JSON(resp)
}

// listTasks handles GET /api/v1/tasks.
func (m *APIModule) listTasks(c *fiber.Ctx) error {
	q, err := parseQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := m.taskPort.List(c.UserContext(), q)
	if err != nil {
		return handleLifecycleError(c, principalFrom(c), err)
	}
	return c.JSON(TaskListResponse{
		Tasks:  resp.Tasks,
		Total:  resp.Total,
		Limit:  resp.Limit,
		Offset: resp.Offset,
	})
}

// getTask handles GET /api/v1/tasks/:id.
func (m *APIModule) getTask(c *fiber.Ctx) error {
	t, err := m.taskPort.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return handleLifecycleError(c, principalFrom(c), err)
	}
	return c.JSON(t)
}

// createTask handles POST /api/v1/tasks.
func (m *APIModule) createTask(c *fiber.Ctx) error {
	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		return badRequest(c, err.Error())
	}

	p := principalFrom(c)
	t, err := m.taskPort.Create(c.UserContext(), p, domain.Content{
		Title:        req.Title,
		Category:     req.Category,
		Description:  req.Description,
		Price:        req.Price,
		Deadline:     deadline,
		Requirements: req.Requirements,
	})
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

// editTask handles PUT /api/v1/tasks/:id.
func (m *APIModule) editTask(c *fiber.Ctx) error {
	var req TaskPatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	patch := domain.Patch{
		Title:        req.Title,
		Category:     req.Category,
		Description:  req.Description,
		Price:        req.Price,
		Requirements: req.Requirements,
	}
	if req.Deadline != nil {
		deadline, err := parseDeadline(*req.Deadline)
		if err != nil {
			return badRequest(c, err.Error())
		}
		patch.Deadline = &deadline
	}

	p := principalFrom(c)
	t, err := m.taskPort.EditTask(c.UserContext(), task.EditTaskRequest{
		Principal: p,
		TaskID:    c.Params("id"),
		Patch:     patch,
	})
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.JSON(t)
}

// deleteTask handles DELETE /api/v1/tasks/:id.
func (m *APIModule) deleteTask(c *fiber.Ctx) error {
	p := principalFrom(c)
	if err := m.taskPort.DeleteTask(c.UserContext(), task.TaskActionRequest{
		Principal: p,
		TaskID:    c.Params("id"),
	}); err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// submitBid handles POST /api/v1/tasks/:id/bids.
func (m *APIModule) submitBid(c *fiber.Ctx) error {
	var req BidRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	p := principalFrom(c)
	t, err := m.taskPort.SubmitBid(c.UserContext(), task.SubmitBidRequest{
		Principal: p,
		TaskID:    c.Params("id"),
		Amount:    req.Amount,
		Message:   req.Message,
	})
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

// editBid handles PUT /api/v1/tasks/:id/bids/:bidId.
func (m *APIModule) editBid(c *fiber.Ctx) error {
	var req BidRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	p := principalFrom(c)
	t, err := m.taskPort.EditBid(c.UserContext(), task.EditBidRequest{
		Principal: p,
		TaskID:    c.Params("id"),
		BidID:     c.Params("bidId"),
		Amount:    req.Amount,
	})
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.JSON(t)
}

// deleteBid handles DELETE /api/v1/tasks/:id/bids/:bidId.
func (m *APIModule) deleteBid(c *fiber.Ctx) error {
	p := principalFrom(c)
	t, err := m.taskPort.DeleteBid(c.UserContext(), bidAction(c))
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.JSON(t)
}

// selectBid handles POST /api/v1/tasks/:id/bids/:bidId/select.
func (m *APIModule) selectBid(c *fiber.Ctx) error {
	p := principalFrom(c)
	t, err := m.taskPort.SelectBid(c.UserContext(), bidAction(c))
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.JSON(t)
}

// completeTask handles POST /api/v1/tasks/:id/complete.
func (m *APIModule) completeTask(c *fiber.Ctx) error {
	p := principalFrom(c)
	t, err := m.taskPort.CompleteTask(c.UserContext(), taskAction(c))
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.JSON(t)
}

// releasePayment handles POST /api/v1/tasks/:id/payment.
func (m *APIModule) releasePayment(c *fiber.Ctx) error {
	p := principalFrom(c)
	t, err := m.taskPort.ReleasePayment(c.UserContext(), taskAction(c))
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.JSON(t)
}

// listNotifications handles GET /api/v1/notifications.
func (m *APIModule) listNotifications(c *fiber.Ctx) error {
	p := principalFrom(c)
	resp, err := m.notificationPort.List(c.UserContext(), notification.ListNotificationsRequest{
		UserID:     p.ID,
		UnreadOnly: c.QueryBool("unread", false),
		Limit:      c.QueryInt("limit", 0),
	})
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.JSON(resp)
}

// markNotificationRead handles POST /api/v1/notifications/:id/read.
func (m *APIModule) markNotificationRead(c *fiber.Ctx) error {
	p := principalFrom(c)
	n, err := m.notificationPort.MarkRead(c.UserContext(), p.ID, c.Params("id"))
	if err != nil {
		return handleLifecycleError(c, p, err)
	}
	return c.JSON(n)
}

func bidAction(c *fiber.Ctx) task.BidActionRequest {
	return task.BidActionRequest{
		Principal: principalFrom(c),
		TaskID:    c.Params("id"),
		BidID:     c.Params("bidId"),
	}
}

func taskAction(c *fiber.Ctx) task.TaskActionRequest {
	return task.TaskActionRequest{
		Principal: principalFrom(c),
		TaskID:    c.Params("id"),
	}
}

// parseQuery builds a listing query from the request's query string.
// Statuses are comma separated.
func parseQuery(c *fiber.Ctx) (domain.Query, error) {
	q := domain.Query{
		Category:   c.Query("category"),
		OwnerID:    c.Query("owner"),
		AssignedTo: c.Query("assignedTo"),
		Search:     c.Query("q"),
		Sort:       domain.ParseSortOrder(c.Query("sort")),
	}

	var err error
	if q.MinPrice, err = floatParam(c, "minPrice"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = floatParam(c, "maxPrice"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(c, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(c, "offset"); err != nil {
		return q, err
	}

	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			q.Statuses = append(q.Statuses, domain.Status(strings.ToLower(s)))
		}
	}
	return q, nil
}

func floatParam(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" must be a number")
	}
	return v, nil
}

func intParam(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" must be an integer")
	}
	return v, nil
}

// parseDeadline accepts a calendar date or an RFC 3339 timestamp.
// An empty value is passed through so content validation reports it.
func parseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, "deadline must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}
