package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Persister flushes the full bridge state. *Store is the production
// implementation; tests substitute fakes.
type Persister interface {
	Save(ctx context.Context, hubs map[string]*Hub, links map[string]*ServerLink) error
}

// Registry is the single in-memory source of truth for hubs and server
// links. All mutations happen under one mutex and are flushed to the
// Persister inside the same critical section; if the flush fails the
// in-memory mutation is rolled back, so callers never observe a state that
// was not also persisted.
type Registry struct {
	mu     sync.RWMutex
	hubs   map[string]*Hub
	links  map[string]*ServerLink
	store  Persister
	logger *slog.Logger
}

func NewRegistry(log *slog.Logger, store Persister) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		hubs:   map[string]*Hub{},
		links:  map[string]*ServerLink{},
		store:  store,
		logger: log.With(slog.String("component", "registry")),
	}
}

// Restore seeds the registry from loaded state. It is called once at boot,
// before any other goroutine can reach the registry, and verifies the
// member/link cross-references, pruning entries that point nowhere.
func (r *Registry) Restore(hubs map[string]*Hub, links map[string]*ServerLink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hubs = map[string]*Hub{}
	r.links = map[string]*ServerLink{}
	for id, h := range hubs {
		r.hubs[id] = h.clone()
		r.hubs[id].ID = id
	}
	for guildID, l := range links {
		h, ok := r.hubs[l.HubID]
		if !ok {
			r.logger.Warn("dropping link to unknown hub",
				slog.String("guild_id", guildID),
				slog.String("hub_id", l.HubID),
			)
			continue
		}
		r.links[guildID] = l.clone()
		r.links[guildID].GuildID = guildID
		if !h.HasMember(guildID) {
			h.Members = dedupSorted(append(h.Members, guildID))
		}
	}
	for _, h := range r.hubs {
		kept := h.Members[:0]
		for _, m := range h.Members {
			if _, ok := r.links[m]; ok {
				kept = append(kept, m)
			}
		}
		h.Members = kept
	}
}

// CreateHub registers a new hub. The owner guild is not linked by this call;
// the admin surface joins the creator's channel right after.
func (r *Registry) CreateHub(ctx context.Context, h *Hub) error {
	if h == nil || strings.TrimSpace(h.ID) == "" || strings.TrimSpace(h.OwnerGuildID) == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.hubs[h.ID]; exists {
		return fmt.Errorf("%w: %s", ErrHubExists, h.ID)
	}
	stored := h.clone()
	stored.Members = dedupSorted(stored.Members)
	folded := make([]string, 0, len(stored.FilteredWords))
	for _, w := range stored.FilteredWords {
		if fw := FoldWord(w); fw != "" {
			folded = append(folded, fw)
		}
	}
	stored.FilteredWords = dedupSorted(folded)

	r.hubs[h.ID] = stored
	if err := r.flush(ctx); err != nil {
		delete(r.hubs, h.ID)
		return err
	}
	r.logger.Info("hub created",
		slog.String("hub_id", h.ID),
		slog.String("owner_guild_id", h.OwnerGuildID),
	)
	return nil
}

// JoinHub adds the guild to the hub's member set and records its server
// link. A guild can be linked to at most one hub.
func (r *Registry) JoinHub(ctx context.Context, hubID, guildID, channelID, displayName string, now time.Time) error {
	if strings.TrimSpace(guildID) == "" || strings.TrimSpace(channelID) == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hubs[hubID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchHub, hubID)
	}
	if _, linked := r.links[guildID]; linked {
		return fmt.Errorf("%w: %s", ErrAlreadyLinked, guildID)
	}

	prevHub := h
	next := h.clone()
	next.Members = dedupSorted(append(next.Members, guildID))
	link := &ServerLink{
		GuildID:     guildID,
		HubID:       hubID,
		ChannelID:   channelID,
		DisplayName: displayName,
		JoinedAt:    now.UTC(),
	}

	r.hubs[hubID] = next
	r.links[guildID] = link
	if err := r.flush(ctx); err != nil {
		r.hubs[hubID] = prevHub
		delete(r.links, guildID)
		return err
	}
	r.logger.Info("guild joined hub",
		slog.String("hub_id", hubID),
		slog.String("guild_id", guildID),
		slog.String("channel_id", channelID),
	)
	return nil
}

// LeaveHub removes the guild's link and its hub membership. Leaving while
// not linked is a no-op success.
func (r *Registry) LeaveHub(ctx context.Context, guildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[guildID]
	if !ok {
		return nil
	}
	prevHub := r.hubs[link.HubID]

	delete(r.links, guildID)
	if prevHub != nil {
		next := prevHub.clone()
		next.Members = removeString(next.Members, guildID)
		r.hubs[link.HubID] = next
	}
	if err := r.flush(ctx); err != nil {
		r.links[guildID] = link
		if prevHub != nil {
			r.hubs[link.HubID] = prevHub
		}
		return err
	}
	r.logger.Info("guild left hub",
		slog.String("hub_id", link.HubID),
		slog.String("guild_id", guildID),
	)
	return nil
}

// DeleteHub erases the hub and cascades over every link pointing at it.
// Links go first so the member/link cross-reference never dangles.
func (r *Registry) DeleteHub(ctx context.Context, hubID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hubs[hubID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchHub, hubID)
	}

	removed := map[string]*ServerLink{}
	for guildID, l := range r.links {
		if l.HubID == hubID {
			removed[guildID] = l
			delete(r.links, guildID)
		}
	}
	delete(r.hubs, hubID)

	if err := r.flush(ctx); err != nil {
		r.hubs[hubID] = h
		for guildID, l := range removed {
			r.links[guildID] = l
		}
		return err
	}
	r.logger.Info("hub deleted",
		slog.String("hub_id", hubID),
		slog.Int("links_removed", len(removed)),
	)
	return nil
}

// UpdateServerSettings applies a partial mutation to the guild's link.
func (r *Registry) UpdateServerSettings(ctx context.Context, guildID string, upd LinkUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[guildID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLinked, guildID)
	}
	next := link.clone()
	if upd.DisplayName != nil {
		if strings.TrimSpace(*upd.DisplayName) == "" {
			return ErrInvalidArgument
		}
		next.DisplayName = *upd.DisplayName
	}
	if upd.ChannelID != nil {
		if strings.TrimSpace(*upd.ChannelID) == "" {
			return ErrInvalidArgument
		}
		next.ChannelID = *upd.ChannelID
	}

	r.links[guildID] = next
	if err := r.flush(ctx); err != nil {
		r.links[guildID] = link
		return err
	}
	return nil
}

// UpdateHubSettings applies a partial mutation to hub settings. A replaced
// word list is case-folded and deduplicated.
func (r *Registry) UpdateHubSettings(ctx context.Context, hubID string, upd HubUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hubs[hubID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchHub, hubID)
	}
	next := h.clone()
	if upd.Name != nil {
		if strings.TrimSpace(*upd.Name) == "" {
			return ErrInvalidArgument
		}
		next.Name = *upd.Name
	}
	if upd.Description != nil {
		next.Description = *upd.Description
	}
	if upd.IsPublic != nil {
		next.IsPublic = *upd.IsPublic
	}
	if upd.FilterNSFW != nil {
		next.FilterNSFW = *upd.FilterNSFW
	}
	if upd.FilteredWords != nil {
		folded := make([]string, 0, len(*upd.FilteredWords))
		for _, w := range *upd.FilteredWords {
			if fw := FoldWord(w); fw != "" {
				folded = append(folded, fw)
			}
		}
		next.FilteredWords = dedupSorted(folded)
	}

	r.hubs[hubID] = next
	if err := r.flush(ctx); err != nil {
		r.hubs[hubID] = h
		return err
	}
	return nil
}

// FilterAdd inserts a case-folded word into the hub's filter set.
// Re-adding an existing word is idempotent.
func (r *Registry) FilterAdd(ctx context.Context, hubID, word string) error {
	folded := FoldWord(word)
	if folded == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hubs[hubID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchHub, hubID)
	}
	if h.HasWord(folded) {
		return nil
	}
	next := h.clone()
	next.FilteredWords = dedupSorted(append(next.FilteredWords, folded))

	r.hubs[hubID] = next
	if err := r.flush(ctx); err != nil {
		r.hubs[hubID] = h
		return err
	}
	return nil
}

// FilterRemove drops a word from the hub's filter set. Removing an absent
// word is a no-op success.
func (r *Registry) FilterRemove(ctx context.Context, hubID, word string) error {
	folded := FoldWord(word)
	if folded == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hubs[hubID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchHub, hubID)
	}
	if !h.HasWord(folded) {
		return nil
	}
	next := h.clone()
	next.FilteredWords = removeString(next.FilteredWords, folded)

	r.hubs[hubID] = next
	if err := r.flush(ctx); err != nil {
		r.hubs[hubID] = h
		return err
	}
	return nil
}

// FilterWords returns the hub's filter set.
func (r *Registry) FilterWords(hubID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hubs[hubID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchHub, hubID)
	}
	return append([]string(nil), h.FilteredWords...), nil
}

// LookupByGuild resolves the guild's link and its hub. Returned values are
// copies; callers can hold them without the lock.
func (r *Registry) LookupByGuild(guildID string) (*ServerLink, *Hub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[guildID]
	if !ok {
		return nil, nil, false
	}
	h, ok := r.hubs[link.HubID]
	if !ok {
		return nil, nil, false
	}
	return link.clone(), h.clone(), true
}

// GetHub returns a copy of the hub.
func (r *Registry) GetHub(hubID string) (*Hub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hubs[hubID]
	if !ok {
		return nil, false
	}
	return h.clone(), true
}

// ListPublicHubs returns copies of every public hub, ordered by id so the
// listing is stable within a call.
func (r *Registry) ListPublicHubs() []*Hub {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Hub
	for _, h := range r.hubs {
		if h.IsPublic {
			out = append(out, h.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EnumeratePeers snapshots the fan-out targets of a hub: every member guild
// that still has a server link. Fan-out then proceeds without the lock.
func (r *Registry) EnumeratePeers(hubID string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hubs[hubID]
	if !ok {
		return nil
	}
	peers := make([]Peer, 0, len(h.Members))
	for _, guildID := range h.Members {
		link, ok := r.links[guildID]
		if !ok {
			continue
		}
		peers = append(peers, Peer{
			GuildID:     guildID,
			ChannelID:   link.ChannelID,
			DisplayName: link.DisplayName,
		})
	}
	return peers
}

// Counts returns the number of hubs and links, for the status surface.
func (r *Registry) Counts() (hubs, links int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hubs), len(r.links)
}

// Snapshot deep-copies both maps, for backups and the status surface.
func (r *Registry) Snapshot() (map[string]*Hub, map[string]*ServerLink) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hubs := make(map[string]*Hub, len(r.hubs))
	for id, h := range r.hubs {
		hubs[id] = h.clone()
	}
	links := make(map[string]*ServerLink, len(r.links))
	for guildID, l := range r.links {
		links[guildID] = l.clone()
	}
	return hubs, links
}

// flush writes the current maps through the persister. Callers hold the
// write lock and roll their mutation back when flush fails.
func (r *Registry) flush(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(ctx, r.hubs, r.links); err != nil {
		r.logger.Error("state flush failed, rolling back", slog.Any("error", err))
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}
