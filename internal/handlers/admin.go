package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SiriusNovyx/SiriusSys-sub003/internal/admin"
)

// AdminHandler exposes the intent-level bridge operations to the external
// command layer over HTTP. The caller sits behind the bearer token and is
// trusted to report the actor's guild and permission bits; rendering the
// tagged result into chat UI is entirely its job.
type AdminHandler struct {
	service *admin.Service
	logger  *slog.Logger
}

func NewAdminHandler(log *slog.Logger, service *admin.Service) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  log.With(slog.String("handler", "admin")),
	}
}

// Register mounts the admin verb routes.
func (h *AdminHandler) Register(e *echo.Echo) {
	g := e.Group("/api/admin")
	g.POST("/hubs", h.CreateHub)
	g.POST("/join", h.JoinHub)
	g.POST("/leave", h.LeaveHub)
	g.POST("/delete", h.BeginDelete)
	g.POST("/delete/confirm", h.ConfirmDelete)
	g.POST("/settings", h.UpdateHub)
	g.POST("/display-name", h.SetDisplayName)
	g.POST("/channel", h.SetChannel)
	g.POST("/filter/add", h.FilterAdd)
	g.POST("/filter/remove", h.FilterRemove)
	g.GET("/filter", h.FilterList)
}

type actorRequest struct {
	ActorGuild   string `json:"actor_guild"`
	ActorChannel string `json:"actor_channel"`
	ActorIsAdmin bool   `json:"actor_is_admin"`
	ActorIsMod   bool   `json:"actor_is_mod"`
}

type createHubRequest struct {
	actorRequest
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateHub creates a hub and links the creator's channel.
func (h *AdminHandler) CreateHub(c echo.Context) error {
	var req createHubRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.CreateHub(c.Request().Context(), req.ActorGuild, req.ActorChannel, req.ActorIsAdmin, req.Name, req.Description)
	return respond(c, res)
}

type joinHubRequest struct {
	actorRequest
	HubID string `json:"hub_id"`
	Alias string `json:"alias"`
}

// JoinHub links the actor's channel into a hub.
func (h *AdminHandler) JoinHub(c echo.Context) error {
	var req joinHubRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.JoinHub(c.Request().Context(), req.ActorGuild, req.ActorChannel, req.ActorIsMod, req.HubID, req.Alias)
	return respond(c, res)
}

// LeaveHub unlinks the actor's guild.
func (h *AdminHandler) LeaveHub(c echo.Context) error {
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.LeaveHub(c.Request().Context(), req.ActorGuild, req.ActorIsMod)
	return respond(c, res)
}

// BeginDelete starts the two-step hub deletion and returns the token the
// command layer must echo back after its yes/no prompt.
func (h *AdminHandler) BeginDelete(c echo.Context) error {
	var req actorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.BeginDelete(c.Request().Context(), req.ActorGuild, req.ActorIsAdmin)
	return respond(c, res)
}

type confirmDeleteRequest struct {
	actorRequest
	Token string `json:"token"`
}

// ConfirmDelete completes a pending hub deletion.
func (h *AdminHandler) ConfirmDelete(c echo.Context) error {
	var req confirmDeleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.ConfirmDelete(c.Request().Context(), req.ActorGuild, req.Token)
	return respond(c, res)
}

type updateHubRequest struct {
	actorRequest
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
	FilterNSFW  *bool   `json:"filter_nsfw"`
}

// UpdateHub applies owner-only hub settings changes.
func (h *AdminHandler) UpdateHub(c echo.Context) error {
	var req updateHubRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.UpdateHub(c.Request().Context(), req.ActorGuild, req.ActorIsAdmin, admin.HubSettings{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		FilterNSFW:  req.FilterNSFW,
	})
	return respond(c, res)
}

type displayNameRequest struct {
	actorRequest
	Alias string `json:"alias"`
}

// SetDisplayName changes the actor guild's relay alias.
func (h *AdminHandler) SetDisplayName(c echo.Context) error {
	var req displayNameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.SetDisplayName(c.Request().Context(), req.ActorGuild, req.ActorIsMod, req.Alias)
	return respond(c, res)
}

type setChannelRequest struct {
	actorRequest
	ChannelID string `json:"channel_id"`
}

// SetChannel moves the actor guild's bridged channel.
func (h *AdminHandler) SetChannel(c echo.Context) error {
	var req setChannelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.SetChannel(c.Request().Context(), req.ActorGuild, req.ActorIsMod, req.ChannelID)
	return respond(c, res)
}

type filterWordRequest struct {
	actorRequest
	Word string `json:"word"`
}

// FilterAdd adds a filter word to the actor's hub.
func (h *AdminHandler) FilterAdd(c echo.Context) error {
	var req filterWordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.FilterAdd(c.Request().Context(), req.ActorGuild, req.ActorIsAdmin, req.Word)
	return respond(c, res)
}

// FilterRemove removes a filter word from the actor's hub.
func (h *AdminHandler) FilterRemove(c echo.Context) error {
	var req filterWordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
	}
	res := h.service.FilterRemove(c.Request().Context(), req.ActorGuild, req.ActorIsAdmin, req.Word)
	return respond(c, res)
}

// FilterList returns the filter words of the actor's hub.
func (h *AdminHandler) FilterList(c echo.Context) error {
	res := h.service.FilterList(
		c.Request().Context(),
		c.QueryParam("actor_guild"),
		c.QueryParam("actor_is_admin") == "true",
	)
	return respond(c, res)
}

// respond maps the tagged result onto an HTTP status. The result body is
// returned unchanged either way; the command layer switches on Status.
func respond(c echo.Context, res admin.Result) error {
	code := http.StatusOK
	switch res.Status {
	case admin.StatusOk:
	case admin.StatusNotAuthorised:
		code = http.StatusForbidden
	case admin.StatusNoSuchHub, admin.StatusNotLinked:
		code = http.StatusNotFound
	case admin.StatusAlreadyLinked, admin.StatusHubExists:
		code = http.StatusConflict
	case admin.StatusInvalidArgument:
		code = http.StatusBadRequest
	default:
		code = http.StatusInternalServerError
	}
	return c.JSON(code, res)
}
