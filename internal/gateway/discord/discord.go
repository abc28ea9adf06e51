// Package discord implements the gateway.Binding on top of a discordgo
// session.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/SiriusNovyx/SiriusSys-sub003/internal/gateway"
)

// Config holds the discord connection settings.
type Config struct {
	BotToken string
}

func (c Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("discord bot token is required")
	}
	return nil
}

// Binding wraps a discordgo session behind the gateway contract.
type Binding struct {
	session  *discordgo.Session
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers []gateway.Handler
}

func NewBinding(log *slog.Logger, cfg Config) (*Binding, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	session.StateEnabled = true

	b := &Binding{
		session: session,
		logger:  log.With(slog.String("component", "discord")),
	}
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

// Open connects the gateway websocket. Handlers registered through
// SubscribeMessages start receiving events once the connection is up.
func (b *Binding) Open(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	b.logger.Info("discord gateway connected")
	return nil
}

func (b *Binding) Close(ctx context.Context) error {
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	b.logger.Info("discord gateway closed")
	return nil
}

func (b *Binding) SubscribeMessages(handler gateway.Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

func (b *Binding) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}
	msg := b.translate(m)

	b.mu.RLock()
	handlers := append([]gateway.Handler(nil), b.handlers...)
	b.mu.RUnlock()

	ctx := context.Background()
	for _, h := range handlers {
		h(ctx, msg)
	}
}

func (b *Binding) translate(m *discordgo.MessageCreate) gateway.Message {
	nsfw := false
	if ch, ok := b.ResolveChannel(m.GuildID, m.ChannelID); ok {
		nsfw = ch.NSFW
	}
	attachments := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		if a != nil && a.URL != "" {
			attachments = append(attachments, a.URL)
		}
	}
	return gateway.Message{
		GuildID:         m.GuildID,
		ChannelID:       m.ChannelID,
		MessageID:       m.ID,
		AuthorID:        m.Author.ID,
		AuthorDisplay:   displayName(m),
		AuthorAvatarURL: m.Author.AvatarURL(""),
		AuthorIsBot:     m.Author.Bot,
		Content:         m.Content,
		Attachments:     attachments,
		ChannelNSFW:     nsfw,
		CreatedAt:       m.Timestamp,
	}
}

// SendEmbed delivers one embedded message to a channel.
func (b *Binding) SendEmbed(ctx context.Context, channelID string, embed gateway.Embed) error {
	e := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name:    embed.AuthorName,
			IconURL: embed.AuthorIconURL,
		},
		Description: embed.Description,
		Footer: &discordgo.MessageEmbedFooter{
			Text: embed.FooterText,
		},
	}
	if !embed.Timestamp.IsZero() {
		e.Timestamp = embed.Timestamp.UTC().Format(time.RFC3339)
	}
	if embed.ImageURL != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: embed.ImageURL}
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, e, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send embed to %s: %w", channelID, err)
	}
	return nil
}

// ResolveGuild looks a guild up in the session state, falling back to the
// REST API for guilds the cache has not seen yet.
func (b *Binding) ResolveGuild(guildID string) (gateway.Guild, bool) {
	if g, err := b.session.State.Guild(guildID); err == nil && g != nil {
		return gateway.Guild{ID: g.ID, Name: g.Name}, true
	}
	g, err := b.session.Guild(guildID)
	if err != nil || g == nil {
		return gateway.Guild{}, false
	}
	return gateway.Guild{ID: g.ID, Name: g.Name}, true
}

// ResolveChannel looks a channel up in the session state with a REST
// fallback, and rejects channels that belong to a different guild.
func (b *Binding) ResolveChannel(guildID, channelID string) (gateway.Channel, bool) {
	ch, err := b.session.State.Channel(channelID)
	if err != nil || ch == nil {
		ch, err = b.session.Channel(channelID)
		if err != nil || ch == nil {
			return gateway.Channel{}, false
		}
	}
	if guildID != "" && ch.GuildID != "" && ch.GuildID != guildID {
		return gateway.Channel{}, false
	}
	return gateway.Channel{
		ID:      ch.ID,
		GuildID: ch.GuildID,
		Name:    ch.Name,
		NSFW:    ch.NSFW,
		IsText:  isTextChannel(ch.Type),
	}, true
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func isTextChannel(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return true
	default:
		return false
	}
}
