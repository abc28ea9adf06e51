// Package admin exposes the intent-level bridge operations consumed by an
// external command layer. Each operation pairs a registry mutation with
// authorisation; rendering the result is the caller's job.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/SiriusNovyx/SiriusSys-sub003/internal/gateway"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/hub"
)

// Service implements the admin surface over the hub registry and the host
// binding.
type Service struct {
	registry *hub.Registry
	binding  gateway.Binding
	confirms *confirmRegistry
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(log *slog.Logger, registry *hub.Registry, binding gateway.Binding) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		registry: registry,
		binding:  binding,
		confirms: newConfirmRegistry(confirmTTL),
		logger:   log.With(slog.String("service", "admin")),
		now:      time.Now,
	}
}

// CreateHub creates a hub owned by the actor's guild and links the actor's
// current channel as its bridged channel. Requires guild admin.
func (s *Service) CreateHub(ctx context.Context, actorGuild, actorChannel string, actorIsAdmin bool, name, description string) Result {
	if !actorIsAdmin {
		return failure(StatusNotAuthorised, "hub creation requires a server administrator")
	}
	if strings.TrimSpace(name) == "" {
		return failure(StatusInvalidArgument, "hub name must not be empty")
	}
	if _, _, linked := s.registry.LookupByGuild(actorGuild); linked {
		return failure(StatusAlreadyLinked, "this server is already linked to a hub")
	}
	if r := s.requireTextChannel(actorGuild, actorChannel); r.Status != StatusOk {
		return r
	}

	now := s.now()
	h := &hub.Hub{
		ID:           hub.NewHubID(actorGuild, now),
		Name:         name,
		Description:  description,
		OwnerGuildID: actorGuild,
		CreatedAt:    now.UTC(),
		FilterNSFW:   true,
	}
	if err := s.registry.CreateHub(ctx, h); err != nil {
		return s.fromError(err)
	}
	if err := s.registry.JoinHub(ctx, h.ID, actorGuild, actorChannel, s.guildAlias(actorGuild), now); err != nil {
		// Do not leave a memberless hub behind when the owner link fails.
		if delErr := s.registry.DeleteHub(ctx, h.ID); delErr != nil {
			s.logger.Error("orphan hub cleanup failed",
				slog.String("hub_id", h.ID),
				slog.Any("error", delErr),
			)
		}
		return s.fromError(err)
	}
	return Result{Status: StatusOk, HubID: h.ID}
}

// JoinHub links the actor's channel into an existing hub. Requires guild
// moderator.
func (s *Service) JoinHub(ctx context.Context, actorGuild, actorChannel string, actorIsMod bool, hubID, alias string) Result {
	if !actorIsMod {
		return failure(StatusNotAuthorised, "joining a hub requires a server moderator")
	}
	if r := s.requireTextChannel(actorGuild, actorChannel); r.Status != StatusOk {
		return r
	}
	if strings.TrimSpace(alias) == "" {
		alias = s.guildAlias(actorGuild)
	}
	if err := s.registry.JoinHub(ctx, hubID, actorGuild, actorChannel, alias, s.now()); err != nil {
		return s.fromError(err)
	}
	return Result{Status: StatusOk, HubID: hubID}
}

// LeaveHub unlinks the actor's guild. Leaving while not linked succeeds.
func (s *Service) LeaveHub(ctx context.Context, actorGuild string, actorIsMod bool) Result {
	if !actorIsMod {
		return failure(StatusNotAuthorised, "leaving a hub requires a server moderator")
	}
	if err := s.registry.LeaveHub(ctx, actorGuild); err != nil {
		return s.fromError(err)
	}
	return ok()
}

// BeginDelete starts the two-step deletion of the hub owned by the actor's
// guild. The returned token must come back through ConfirmDelete within the
// confirmation window; otherwise nothing changes.
func (s *Service) BeginDelete(ctx context.Context, actorGuild string, actorIsAdmin bool) Result {
	if !actorIsAdmin {
		return failure(StatusNotAuthorised, "hub deletion requires a server administrator")
	}
	_, h, linked := s.registry.LookupByGuild(actorGuild)
	if !linked {
		return failure(StatusNotLinked, "this server is not linked to a hub")
	}
	if h.OwnerGuildID != actorGuild {
		return failure(StatusNotAuthorised, "only the owner server can delete a hub")
	}
	token := s.confirms.begin(actorGuild, h.ID)
	return Result{Status: StatusOk, HubID: h.ID, Token: token}
}

// ConfirmDelete completes a deletion started by BeginDelete.
func (s *Service) ConfirmDelete(ctx context.Context, actorGuild, token string) Result {
	hubID, guildID, found := s.confirms.take(token)
	if !found || guildID != actorGuild {
		return failure(StatusInvalidArgument, "confirmation expired or unknown")
	}
	if err := s.registry.DeleteHub(ctx, hubID); err != nil {
		return s.fromError(err)
	}
	return Result{Status: StatusOk, HubID: hubID}
}

// UpdateHub applies owner-only hub settings changes.
func (s *Service) UpdateHub(ctx context.Context, actorGuild string, actorIsAdmin bool, settings HubSettings) Result {
	h, r := s.requireOwner(actorGuild, actorIsAdmin)
	if r.Status != StatusOk {
		return r
	}
	err := s.registry.UpdateHubSettings(ctx, h.ID, hub.HubUpdate{
		Name:        settings.Name,
		Description: settings.Description,
		IsPublic:    settings.IsPublic,
		FilterNSFW:  settings.FilterNSFW,
	})
	if err != nil {
		return s.fromError(err)
	}
	return Result{Status: StatusOk, HubID: h.ID}
}

// SetDisplayName changes the alias shown on messages relayed from the
// actor's guild.
func (s *Service) SetDisplayName(ctx context.Context, actorGuild string, actorIsMod bool, newAlias string) Result {
	if !actorIsMod {
		return failure(StatusNotAuthorised, "renaming requires a server moderator")
	}
	if err := s.registry.UpdateServerSettings(ctx, actorGuild, hub.LinkUpdate{DisplayName: &newAlias}); err != nil {
		return s.fromError(err)
	}
	return ok()
}

// SetChannel moves the guild's bridged channel.
func (s *Service) SetChannel(ctx context.Context, actorGuild string, actorIsMod bool, channelID string) Result {
	if !actorIsMod {
		return failure(StatusNotAuthorised, "rebinding the channel requires a server moderator")
	}
	if r := s.requireTextChannel(actorGuild, channelID); r.Status != StatusOk {
		return r
	}
	if err := s.registry.UpdateServerSettings(ctx, actorGuild, hub.LinkUpdate{ChannelID: &channelID}); err != nil {
		return s.fromError(err)
	}
	return ok()
}

// FilterAdd inserts a word into the hub's filter set. Owner-only.
func (s *Service) FilterAdd(ctx context.Context, actorGuild string, actorIsAdmin bool, word string) Result {
	h, r := s.requireOwner(actorGuild, actorIsAdmin)
	if r.Status != StatusOk {
		return r
	}
	if err := s.registry.FilterAdd(ctx, h.ID, word); err != nil {
		return s.fromError(err)
	}
	return Result{Status: StatusOk, HubID: h.ID}
}

// FilterRemove drops a word from the hub's filter set. Owner-only.
func (s *Service) FilterRemove(ctx context.Context, actorGuild string, actorIsAdmin bool, word string) Result {
	h, r := s.requireOwner(actorGuild, actorIsAdmin)
	if r.Status != StatusOk {
		return r
	}
	if err := s.registry.FilterRemove(ctx, h.ID, word); err != nil {
		return s.fromError(err)
	}
	return Result{Status: StatusOk, HubID: h.ID}
}

// FilterList returns the hub's filter words. Visible to any admin of a
// member guild.
func (s *Service) FilterList(ctx context.Context, actorGuild string, actorIsAdmin bool) Result {
	if !actorIsAdmin {
		return failure(StatusNotAuthorised, "listing filter words requires a server administrator")
	}
	_, h, linked := s.registry.LookupByGuild(actorGuild)
	if !linked {
		return failure(StatusNotLinked, "this server is not linked to a hub")
	}
	words, err := s.registry.FilterWords(h.ID)
	if err != nil {
		return s.fromError(err)
	}
	return Result{Status: StatusOk, HubID: h.ID, Words: words}
}

// ListPublicHubs exposes the browsable hub directory to the command layer.
func (s *Service) ListPublicHubs(ctx context.Context) []*hub.Hub {
	return s.registry.ListPublicHubs()
}

func (s *Service) requireOwner(actorGuild string, actorIsAdmin bool) (*hub.Hub, Result) {
	if !actorIsAdmin {
		return nil, failure(StatusNotAuthorised, "this operation requires a server administrator")
	}
	_, h, linked := s.registry.LookupByGuild(actorGuild)
	if !linked {
		return nil, failure(StatusNotLinked, "this server is not linked to a hub")
	}
	if h.OwnerGuildID != actorGuild {
		return nil, failure(StatusNotAuthorised, "only the owner server can change hub settings")
	}
	return h, ok()
}

func (s *Service) requireTextChannel(guildID, channelID string) Result {
	ch, found := s.binding.ResolveChannel(guildID, channelID)
	if !found {
		return failure(StatusInvalidArgument, "channel is not visible to the bridge")
	}
	if !ch.IsText {
		return failure(StatusInvalidArgument, "only text channels can be bridged")
	}
	return ok()
}

func (s *Service) guildAlias(guildID string) string {
	if g, found := s.binding.ResolveGuild(guildID); found && g.Name != "" {
		return g.Name
	}
	return guildID
}

func (s *Service) fromError(err error) Result {
	switch {
	case errors.Is(err, hub.ErrHubExists):
		return failure(StatusHubExists, "a hub with this id already exists")
	case errors.Is(err, hub.ErrNoSuchHub):
		return failure(StatusNoSuchHub, "no hub with this id exists")
	case errors.Is(err, hub.ErrAlreadyLinked):
		return failure(StatusAlreadyLinked, "this server is already linked to a hub")
	case errors.Is(err, hub.ErrNotLinked):
		return failure(StatusNotLinked, "this server is not linked to a hub")
	case errors.Is(err, hub.ErrInvalidArgument):
		return failure(StatusInvalidArgument, "invalid argument")
	default:
		s.logger.Error("admin operation failed", slog.Any("error", err))
		return failure(StatusInternalError, "internal error")
	}
}
