package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SiriusNovyx/SiriusSys-sub003/internal/filter"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/gateway"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/hub"
)

// fakeBinding records embed sends and resolves everything unless told
// otherwise.
type fakeBinding struct {
	mu            sync.Mutex
	handler       gateway.Handler
	sent          []sentEmbed
	failChannels  map[string]error
	missingGuilds map[string]bool
	missingChans  map[string]bool
}

type sentEmbed struct {
	channelID string
	embed     gateway.Embed
}

func newFakeBinding() *fakeBinding {
	return &fakeBinding{
		failChannels:  map[string]error{},
		missingGuilds: map[string]bool{},
		missingChans:  map[string]bool{},
	}
}

func (f *fakeBinding) SubscribeMessages(h gateway.Handler) { f.handler = h }

func (f *fakeBinding) SendEmbed(ctx context.Context, channelID string, embed gateway.Embed) error {
	if err := f.failChannels[channelID]; err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentEmbed{channelID: channelID, embed: embed})
	f.mu.Unlock()
	return nil
}

func (f *fakeBinding) allSent() []sentEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmbed(nil), f.sent...)
}

func (f *fakeBinding) ResolveGuild(guildID string) (gateway.Guild, bool) {
	if f.missingGuilds[guildID] {
		return gateway.Guild{}, false
	}
	return gateway.Guild{ID: guildID, Name: "Guild " + guildID}, true
}

func (f *fakeBinding) ResolveChannel(guildID, channelID string) (gateway.Channel, bool) {
	if f.missingChans[channelID] {
		return gateway.Channel{}, false
	}
	return gateway.Channel{ID: channelID, GuildID: guildID, IsText: true}, true
}

// twoGuildHub links g1 (owner, channel c1, alias West) and g2 (c2, East)
// into one hub named Crossroads.
func twoGuildHub(t *testing.T) *hub.Registry {
	t.Helper()
	ctx := context.Background()
	r := hub.NewRegistry(nil, nil)
	h := &hub.Hub{ID: "h1", Name: "Crossroads", OwnerGuildID: "g1", FilterNSFW: true}
	if err := r.CreateHub(ctx, h); err != nil {
		t.Fatal(err)
	}
	if err := r.JoinHub(ctx, "h1", "g1", "c1", "West", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := r.JoinHub(ctx, "h1", "g2", "c2", "East", time.Now()); err != nil {
		t.Fatal(err)
	}
	return r
}

func testMessage() gateway.Message {
	return gateway.Message{
		GuildID:         "g1",
		ChannelID:       "c1",
		MessageID:       "m1",
		AuthorID:        "u1",
		AuthorDisplay:   "Alice",
		AuthorAvatarURL: "https://cdn.example/alice.png",
		Content:         "hello",
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestDispatcher(t *testing.T, r *hub.Registry, b *fakeBinding) *Dispatcher {
	t.Helper()
	return NewDispatcher(nil, r, filter.NewEngine(), b, "TestBridge")
}

func TestRelayToPeers(t *testing.T) {
	b := newFakeBinding()
	d := newTestDispatcher(t, twoGuildHub(t), b)

	d.HandleMessage(context.Background(), testMessage())

	if len(b.sent) != 1 {
		t.Fatalf("sent = %d embeds, want 1", len(b.sent))
	}
	got := b.sent[0]
	if got.channelID != "c2" {
		t.Errorf("relayed to %s, want c2", got.channelID)
	}
	if got.embed.AuthorName != "Alice [West]" {
		t.Errorf("author line = %q", got.embed.AuthorName)
	}
	if got.embed.Description != "hello" {
		t.Errorf("body = %q", got.embed.Description)
	}
	if !strings.Contains(got.embed.FooterText, "Crossroads") || !strings.Contains(got.embed.FooterText, "TestBridge") {
		t.Errorf("footer = %q", got.embed.FooterText)
	}
	if !got.embed.Timestamp.Equal(testMessage().CreatedAt) {
		t.Errorf("timestamp = %v", got.embed.Timestamp)
	}
	if d.Snapshot().Relayed != 1 {
		t.Errorf("stats = %+v", d.Snapshot())
	}
}

func TestBotAuthorsNeverRelay(t *testing.T) {
	b := newFakeBinding()
	d := newTestDispatcher(t, twoGuildHub(t), b)

	msg := testMessage()
	msg.AuthorIsBot = true
	d.HandleMessage(context.Background(), msg)

	if len(b.sent) != 0 {
		t.Errorf("bot message relayed: %v", b.sent)
	}
}

func TestNoGuildContextDropped(t *testing.T) {
	b := newFakeBinding()
	d := newTestDispatcher(t, twoGuildHub(t), b)

	msg := testMessage()
	msg.GuildID = ""
	d.HandleMessage(context.Background(), msg)

	if len(b.sent) != 0 {
		t.Errorf("guildless message relayed: %v", b.sent)
	}
}

func TestWrongChannelDropped(t *testing.T) {
	b := newFakeBinding()
	d := newTestDispatcher(t, twoGuildHub(t), b)

	msg := testMessage()
	msg.ChannelID = "c-other"
	d.HandleMessage(context.Background(), msg)

	if len(b.sent) != 0 {
		t.Errorf("off-channel message relayed: %v", b.sent)
	}
}

func TestUnlinkedGuildDropped(t *testing.T) {
	b := newFakeBinding()
	d := newTestDispatcher(t, twoGuildHub(t), b)

	msg := testMessage()
	msg.GuildID = "g-stranger"
	d.HandleMessage(context.Background(), msg)

	if len(b.sent) != 0 {
		t.Errorf("unlinked guild relayed: %v", b.sent)
	}
}

func TestNSFWChannelBlocked(t *testing.T) {
	b := newFakeBinding()
	d := newTestDispatcher(t, twoGuildHub(t), b)

	msg := testMessage()
	msg.ChannelNSFW = true
	d.HandleMessage(context.Background(), msg)

	if len(b.sent) != 0 {
		t.Errorf("nsfw-origin message relayed: %v", b.sent)
	}
	if d.Snapshot().Blocked != 1 {
		t.Errorf("stats = %+v", d.Snapshot())
	}
}

func TestFilteredWordBlockedSilently(t *testing.T) {
	ctx := context.Background()
	r := twoGuildHub(t)
	if err := r.FilterAdd(ctx, "h1", "spoiler"); err != nil {
		t.Fatal(err)
	}
	b := newFakeBinding()
	d := newTestDispatcher(t, r, b)

	msg := testMessage()
	msg.Content = "SPOILER!"
	d.HandleMessage(ctx, msg)
	if len(b.sent) != 0 {
		t.Errorf("filtered message relayed: %v", b.sent)
	}

	msg.Content = "no spoilers please"
	d.HandleMessage(ctx, msg)
	if len(b.sent) != 1 {
		t.Errorf("prefix-only hit blocked, sent = %d", len(b.sent))
	}
}

func TestZeroPeersRelaysToNobody(t *testing.T) {
	ctx := context.Background()
	r := hub.NewRegistry(nil, nil)
	if err := r.CreateHub(ctx, &hub.Hub{ID: "h1", Name: "Solo", OwnerGuildID: "g1"}); err != nil {
		t.Fatal(err)
	}
	if err := r.JoinHub(ctx, "h1", "g1", "c1", "West", time.Now()); err != nil {
		t.Fatal(err)
	}
	b := newFakeBinding()
	d := newTestDispatcher(t, r, b)

	d.HandleMessage(ctx, testMessage())

	if len(b.sent) != 0 {
		t.Errorf("solo hub relayed: %v", b.sent)
	}
	if d.Snapshot().Relayed != 1 {
		t.Errorf("stats = %+v", d.Snapshot())
	}
}

func TestAttachmentPassthrough(t *testing.T) {
	b := newFakeBinding()
	d := newTestDispatcher(t, twoGuildHub(t), b)

	msg := testMessage()
	msg.Attachments = []string{"https://cdn.example/a.png", "https://cdn.example/b.png"}
	d.HandleMessage(context.Background(), msg)

	if len(b.sent) != 1 {
		t.Fatalf("sent = %d", len(b.sent))
	}
	if b.sent[0].embed.ImageURL != "https://cdn.example/a.png" {
		t.Errorf("image = %q, want first attachment", b.sent[0].embed.ImageURL)
	}
}

func TestPeerFailureDoesNotAbortFanOut(t *testing.T) {
	ctx := context.Background()
	r := twoGuildHub(t)
	if err := r.JoinHub(ctx, "h1", "g3", "c3", "South", time.Now()); err != nil {
		t.Fatal(err)
	}
	b := newFakeBinding()
	b.failChannels["c2"] = errors.New("boom")
	d := newTestDispatcher(t, r, b)

	d.HandleMessage(ctx, testMessage())

	if len(b.sent) != 1 || b.sent[0].channelID != "c3" {
		t.Errorf("sent = %v, want only c3", b.sent)
	}
	if d.Snapshot().SendFailures != 1 {
		t.Errorf("stats = %+v", d.Snapshot())
	}
}

func TestInvisiblePeerSkipped(t *testing.T) {
	ctx := context.Background()
	r := twoGuildHub(t)
	if err := r.JoinHub(ctx, "h1", "g3", "c3", "South", time.Now()); err != nil {
		t.Fatal(err)
	}
	b := newFakeBinding()
	b.missingGuilds["g2"] = true
	b.missingChans["c3"] = true
	d := newTestDispatcher(t, r, b)

	d.HandleMessage(ctx, testMessage())

	if len(b.sent) != 0 {
		t.Errorf("sent = %v, want none", b.sent)
	}
}

func TestDeletedHubStopsRelaying(t *testing.T) {
	ctx := context.Background()
	r := twoGuildHub(t)
	b := newFakeBinding()
	d := newTestDispatcher(t, r, b)

	if err := r.DeleteHub(ctx, "h1"); err != nil {
		t.Fatal(err)
	}
	d.HandleMessage(ctx, testMessage())
	msg := testMessage()
	msg.GuildID, msg.ChannelID = "g2", "c2"
	d.HandleMessage(ctx, msg)

	if len(b.sent) != 0 {
		t.Errorf("former members still relay: %v", b.sent)
	}
}

func TestWorkerShardingPreservesPerOriginOrder(t *testing.T) {
	b := newFakeBinding()
	d := newTestDispatcher(t, twoGuildHub(t), b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	for i := 0; i < 10; i++ {
		msg := testMessage()
		msg.Content = fmt.Sprintf("msg-%d", i)
		b.handler(context.Background(), msg)
	}
	// One origin maps to one shard, so deliveries stay in order.
	deadline := time.After(2 * time.Second)
	for len(b.allSent()) < 10 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 10 messages relayed", len(b.allSent()))
		case <-time.After(10 * time.Millisecond):
		}
	}
	for i, s := range b.allSent() {
		if want := fmt.Sprintf("msg-%d", i); s.embed.Description != want {
			t.Errorf("position %d = %q, want %q", i, s.embed.Description, want)
		}
	}
}

func TestOriginShardIsStable(t *testing.T) {
	a := originShard("g1", "c1", 4)
	for i := 0; i < 100; i++ {
		if originShard("g1", "c1", 4) != a {
			t.Fatal("shard not stable for one origin")
		}
	}
	if s := originShard("g", "c", 1); s != 0 {
		t.Errorf("single shard = %d", s)
	}
}
