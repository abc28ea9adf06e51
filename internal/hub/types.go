// Package hub holds the cross-guild bridge state: hub definitions, the
// per-guild server links, the durable store, and the registry that guards
// both maps.
package hub

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrHubExists       = errors.New("hub already exists")
	ErrNoSuchHub       = errors.New("no such hub")
	ErrAlreadyLinked   = errors.New("guild is already linked to a hub")
	ErrNotLinked       = errors.New("guild is not linked to any hub")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Hub is a named many-to-many relay group owned by a single guild.
type Hub struct {
	ID            string    `json:"-"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	OwnerGuildID  string    `json:"owner_guild_id"`
	IsPublic      bool      `json:"is_public"`
	CreatedAt     time.Time `json:"created_at"`
	FilterNSFW    bool      `json:"filter_nsfw"`
	FilteredWords []string  `json:"filtered_words"`
	Members       []string  `json:"members"`
}

// ServerLink binds one guild to at most one hub and to exactly one
// channel inside that guild.
type ServerLink struct {
	GuildID     string    `json:"-"`
	HubID       string    `json:"hub_id"`
	ChannelID   string    `json:"channel_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Peer is one fan-out target of a hub: a member guild with its bridged
// channel and display alias.
type Peer struct {
	GuildID     string
	ChannelID   string
	DisplayName string
}

// HubUpdate carries a partial mutation of hub settings. Nil fields are
// left untouched.
type HubUpdate struct {
	Name          *string
	Description   *string
	IsPublic      *bool
	FilterNSFW    *bool
	FilteredWords *[]string
}

// LinkUpdate carries a partial mutation of a server link.
type LinkUpdate struct {
	DisplayName *string
	ChannelID   *string
}

// NewHubID builds the canonical hub identifier for a hub created now by the
// given guild. After creation the format is opaque.
func NewHubID(ownerGuildID string, now time.Time) string {
	return fmt.Sprintf("hub_%s_%d", ownerGuildID, now.Unix())
}

// FoldWord normalizes a filter word for storage and matching.
func FoldWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}

// HasMember reports whether guildID is in the hub's member set.
func (h *Hub) HasMember(guildID string) bool {
	for _, m := range h.Members {
		if m == guildID {
			return true
		}
	}
	return false
}

// HasWord reports whether the case-folded word is already filtered.
func (h *Hub) HasWord(folded string) bool {
	for _, w := range h.FilteredWords {
		if w == folded {
			return true
		}
	}
	return false
}

func (h *Hub) clone() *Hub {
	c := *h
	c.FilteredWords = append([]string(nil), h.FilteredWords...)
	c.Members = append([]string(nil), h.Members...)
	return &c
}

func (l *ServerLink) clone() *ServerLink {
	c := *l
	return &c
}

// dedupSorted returns the set of values with duplicates removed, sorted so
// that persisted documents stay stable across saves.
func dedupSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func removeString(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
