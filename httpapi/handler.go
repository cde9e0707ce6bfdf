package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/halftrip/cachepurge"
	"github.com/halftrip/cachepurge/audit"
)

const refreshCookie = "refresh_token"

// SignOuter ends a session at the authentication provider.
type SignOuter interface {
	SignOut(ctx context.Context, refreshToken string) error
}

// Options configure a Handler.
type Options struct {
	CookieSecure bool
	Logger       cachepurge.Logger
}

// Handler serves the guarded sign-out and the purge audit trail.
type Handler struct {
	guard   *cachepurge.Guard
	auth    SignOuter
	history *audit.History
	opts    Options
}

// NewHandler creates a Handler. history may be nil when auditing is disabled.
func NewHandler(guard *cachepurge.Guard, auth SignOuter, history *audit.History, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = cachepurge.NopLogger()
	}
	return &Handler{guard: guard, auth: auth, history: history, opts: opts}
}

// Register mounts the routes on r.
func (h *Handler) Register(r fiber.Router) {
	r.Post("/api/auth/logout", h.Logout)
	r.Get("/api/purge/history", h.History)
}

type logoutResponse struct {
	Message   string   `json:"message"`
	PassID    string   `json:"passId"`
	Purged    []string `json:"purged"`
	NotPurged []string `json:"notPurged,omitempty"`
}

// Logout handles POST /api/auth/logout. The local purge runs first; its failures are
// reported in the body but never change the status, which reflects only the provider.
func (h *Handler) Logout(c *fiber.Ctx) error {
	refreshToken := c.Cookies(refreshCookie)
	out := h.guard.SecureTransition(c.UserContext(), func(ctx context.Context) error {
		return h.auth.SignOut(ctx, refreshToken)
	})

	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		HTTPOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: "Strict",
		Path:     "/api/auth",
	})

	resp := logoutResponse{Message: "signed out", PassID: out.Purge.PassID, Purged: []string{}}
	for _, o := range out.Purge.Outcomes {
		if o.Success {
			resp.Purged = append(resp.Purged, o.Adapter)
		} else {
			resp.NotPurged = append(resp.NotPurged, o.Adapter)
		}
	}
	if out.Err != nil {
		h.opts.Logger.Error("logout failed at provider", cachepurge.Field{Key: "pass", Value: out.Purge.PassID}, cachepurge.Field{Key: "err", Value: out.Err})
		resp.Message = "sign-out failed"
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}
	return c.JSON(resp)
}

// History handles GET /api/purge/history?after=N.
func (h *Handler) History(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "audit history disabled"})
	}
	after := c.QueryInt("after", 0)
	if after < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "after must be >= 0"})
	}
	records, latest := h.history.Since(uint64(after))
	if records == nil {
		records = []audit.Record{}
	}
	return c.JSON(fiber.Map{"records": records, "latest": latest})
}

// NewApp returns a fiber app with the handler mounted.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	h.Register(app)
	return app
}
