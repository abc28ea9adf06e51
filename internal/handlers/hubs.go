// Package handlers contains the Echo handlers of the read-only status API.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/SiriusNovyx/SiriusSys-sub003/internal/hub"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/relay"
)

// ErrorResponse is the standard API error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}

// HubView is the API representation of a hub. Filter words are deliberately
// not exposed here; they are owner-facing.
type HubView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	OwnerGuildID string    `json:"owner_guild_id"`
	IsPublic     bool      `json:"is_public"`
	FilterNSFW   bool      `json:"filter_nsfw"`
	MemberCount  int       `json:"member_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// StatsView is the API representation of bridge counters.
type StatsView struct {
	Hubs  int         `json:"hubs"`
	Links int         `json:"links"`
	Relay relay.Stats `json:"relay"`
}

// HubsHandler exposes the hub directory and relay counters.
type HubsHandler struct {
	registry   *hub.Registry
	dispatcher *relay.Dispatcher
	logger     *slog.Logger
}

func NewHubsHandler(log *slog.Logger, registry *hub.Registry, dispatcher *relay.Dispatcher) *HubsHandler {
	return &HubsHandler{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     log.With(slog.String("handler", "hubs")),
	}
}

// Register mounts the hub directory routes.
func (h *HubsHandler) Register(e *echo.Echo) {
	e.GET("/api/hubs", h.ListPublic)
	e.GET("/api/hubs/:id", h.Get)
	e.GET("/api/stats", h.Stats)
}

// ListPublic returns every public hub.
func (h *HubsHandler) ListPublic(c echo.Context) error {
	hubs := h.registry.ListPublicHubs()
	views := make([]HubView, 0, len(hubs))
	for _, entry := range hubs {
		views = append(views, toView(entry))
	}
	return c.JSON(http.StatusOK, views)
}

// Get returns one hub by id. Private hubs resolve too; knowing the opaque
// id is treated as enough.
func (h *HubsHandler) Get(c echo.Context) error {
	entry, found := h.registry.GetHub(c.Param("id"))
	if !found {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "hub not found"})
	}
	return c.JSON(http.StatusOK, toView(entry))
}

// Stats returns registry sizes and relay counters.
func (h *HubsHandler) Stats(c echo.Context) error {
	hubs, links := h.registry.Counts()
	return c.JSON(http.StatusOK, StatsView{
		Hubs:  hubs,
		Links: links,
		Relay: h.dispatcher.Snapshot(),
	})
}

func toView(h *hub.Hub) HubView {
	return HubView{
		ID:           h.ID,
		Name:         h.Name,
		Description:  h.Description,
		OwnerGuildID: h.OwnerGuildID,
		IsPublic:     h.IsPublic,
		FilterNSFW:   h.FilterNSFW,
		MemberCount:  len(h.Members),
		CreatedAt:    h.CreatedAt,
	}
}
