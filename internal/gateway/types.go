// Package gateway defines the narrow host-platform binding the bridge
// consumes: an inbound message stream, embed delivery, and guild/channel
// resolution. Platform identifiers are opaque strings throughout.
package gateway

import (
	"context"
	"time"
)

// Message is one inbound chat message as delivered by the host gateway.
type Message struct {
	GuildID         string
	ChannelID       string
	MessageID       string
	AuthorID        string
	AuthorDisplay   string
	AuthorAvatarURL string
	AuthorIsBot     bool
	Content         string
	Attachments     []string
	ChannelNSFW     bool
	CreatedAt       time.Time
}

// Embed is the relayed representation of a message.
type Embed struct {
	AuthorName    string
	AuthorIconURL string
	Description   string
	Timestamp     time.Time
	FooterText    string
	ImageURL      string
}

// Guild is a resolved guild handle.
type Guild struct {
	ID   string
	Name string
}

// Channel is a resolved channel handle.
type Channel struct {
	ID      string
	GuildID string
	Name    string
	NSFW    bool
	IsText  bool
}

// Handler consumes inbound messages.
type Handler func(ctx context.Context, msg Message)

// Binding is the host-platform surface the bridge depends on. The discord
// adapter is the production implementation; tests use fakes. Send failures
// are non-fatal to callers by contract.
type Binding interface {
	SubscribeMessages(handler Handler)
	SendEmbed(ctx context.Context, channelID string, embed Embed) error
	ResolveGuild(guildID string) (Guild, bool)
	ResolveChannel(guildID, channelID string) (Channel, bool)
}
