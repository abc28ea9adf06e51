// Package relay listens to the host gateway and fans admissible messages
// out to every peer channel of the origin's hub.
package relay

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/SiriusNovyx/SiriusSys-sub003/internal/filter"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/gateway"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/hub"
)

const defaultWorkers = 4

// Stats are the dispatcher's running counters, exposed on the status API.
type Stats struct {
	Relayed      uint64 `json:"relayed"`
	Blocked      uint64 `json:"blocked"`
	Dropped      uint64 `json:"dropped"`
	SendFailures uint64 `json:"send_failures"`
}

// Dispatcher consumes gateway messages and performs hub fan-out. Events are
// sharded onto workers by origin so messages from one channel relay in
// arrival order while distinct origins proceed concurrently.
type Dispatcher struct {
	registry *hub.Registry
	engine   *filter.Engine
	binding  gateway.Binding
	logger   *slog.Logger
	marker   string

	queues  []chan task
	once    sync.Once
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers int

	relayed      atomic.Uint64
	blocked      atomic.Uint64
	dropped      atomic.Uint64
	sendFailures atomic.Uint64
}

type task struct {
	ctx context.Context
	msg gateway.Message
}

// NewDispatcher builds a dispatcher. marker is the product name stamped
// into relay embed footers.
func NewDispatcher(log *slog.Logger, registry *hub.Registry, engine *filter.Engine, binding gateway.Binding, marker string) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if marker == "" {
		marker = "SiriusSys GlobalChat"
	}
	return &Dispatcher{
		registry: registry,
		engine:   engine,
		binding:  binding,
		logger:   log.With(slog.String("component", "relay")),
		marker:   marker,
		workers:  defaultWorkers,
	}
}

// Start subscribes to the gateway and spins up the worker shards.
func (d *Dispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		ctx, d.cancel = context.WithCancel(ctx)
		d.queues = make([]chan task, d.workers)
		for i := range d.queues {
			d.queues[i] = make(chan task, 64)
			d.wg.Add(1)
			go d.runWorker(ctx, d.queues[i])
		}
		d.binding.SubscribeMessages(d.enqueue)
		d.logger.Info("relay dispatcher started", slog.Int("workers", d.workers))
	})
}

// Stop cancels the workers and waits for in-flight fan-outs to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Snapshot returns the current counters.
func (d *Dispatcher) Snapshot() Stats {
	return Stats{
		Relayed:      d.relayed.Load(),
		Blocked:      d.blocked.Load(),
		Dropped:      d.dropped.Load(),
		SendFailures: d.sendFailures.Load(),
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, msg gateway.Message) {
	shard := originShard(msg.GuildID, msg.ChannelID, len(d.queues))
	select {
	case d.queues[shard] <- task{ctx: ctx, msg: msg}:
	default:
		d.dropped.Add(1)
		d.logger.Warn("relay queue full, dropping message",
			slog.String("guild_id", msg.GuildID),
			slog.String("channel_id", msg.ChannelID),
		)
	}
}

func (d *Dispatcher) runWorker(ctx context.Context, queue <-chan task) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-queue:
			d.HandleMessage(t.ctx, t.msg)
		}
	}
}

// HandleMessage runs the full relay procedure for one inbound message.
// The bot-author check comes first; relayed copies are sent by the bridge's
// own bot account, so this is what breaks the relay cycle.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg gateway.Message) {
	if msg.AuthorIsBot || msg.GuildID == "" {
		return
	}
	link, h, ok := d.registry.LookupByGuild(msg.GuildID)
	if !ok {
		return
	}
	if msg.ChannelID != link.ChannelID {
		return
	}

	verdict := d.engine.Check(filter.Input{
		Content:       msg.Content,
		ChannelNSFW:   msg.ChannelNSFW,
		FilterNSFW:    h.FilterNSFW,
		FilteredWords: h.FilteredWords,
	})
	if verdict.Blocked {
		d.blocked.Add(1)
		d.logger.Debug("message blocked",
			slog.String("hub_id", h.ID),
			slog.String("guild_id", msg.GuildID),
			slog.String("reason", verdict.Reason),
		)
		return
	}

	embed := buildEmbed(msg, link.DisplayName, h.Name, d.marker)
	for _, peer := range d.registry.EnumeratePeers(h.ID) {
		if peer.GuildID == msg.GuildID {
			continue
		}
		if _, ok := d.binding.ResolveGuild(peer.GuildID); !ok {
			d.logger.Warn("peer guild not visible, skipping",
				slog.String("hub_id", h.ID),
				slog.String("guild_id", peer.GuildID),
			)
			continue
		}
		if _, ok := d.binding.ResolveChannel(peer.GuildID, peer.ChannelID); !ok {
			d.logger.Warn("peer channel not visible, skipping",
				slog.String("hub_id", h.ID),
				slog.String("guild_id", peer.GuildID),
				slog.String("channel_id", peer.ChannelID),
			)
			continue
		}
		if err := d.binding.SendEmbed(ctx, peer.ChannelID, embed); err != nil {
			d.sendFailures.Add(1)
			d.logger.Warn("peer send failed",
				slog.String("hub_id", h.ID),
				slog.String("channel_id", peer.ChannelID),
				slog.Any("error", err),
			)
			continue
		}
	}
	d.relayed.Add(1)
}

// buildEmbed reformats a message for its peers: origin alias on the author
// line, hub name in the footer, first attachment as the image.
func buildEmbed(msg gateway.Message, originAlias, hubName, marker string) gateway.Embed {
	e := gateway.Embed{
		AuthorName:    fmt.Sprintf("%s [%s]", msg.AuthorDisplay, originAlias),
		AuthorIconURL: msg.AuthorAvatarURL,
		Description:   msg.Content,
		Timestamp:     msg.CreatedAt,
		FooterText:    fmt.Sprintf("%s • %s", marker, hubName),
	}
	if len(msg.Attachments) > 0 {
		e.ImageURL = msg.Attachments[0]
	}
	return e
}

func originShard(guildID, channelID string, shards int) int {
	if shards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(guildID))
	h.Write([]byte{'/'})
	h.Write([]byte(channelID))
	return int(h.Sum32() % uint32(shards))
}
