package hub

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(nil, filepath.Join(t.TempDir(), "hubs.json"))
}

func TestStoreLoadMissingFile(t *testing.T) {
	s := testStore(t)
	hubs, links, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(hubs) != 0 || len(links) != 0 {
		t.Errorf("expected empty state, got %d hubs, %d links", len(hubs), len(links))
	}
}

func TestStoreLoadCorruptFile(t *testing.T) {
	s := testStore(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	hubs, links, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("corrupt state must not fail startup, got %v", err)
	}
	if len(hubs) != 0 || len(links) != 0 {
		t.Error("expected empty state for corrupt file")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	hubs := map[string]*Hub{
		"hub_1_1700000000": {
			ID:            "hub_1_1700000000",
			Name:          "Crossroads",
			Description:   "a meeting place",
			OwnerGuildID:  "1",
			IsPublic:      true,
			CreatedAt:     created,
			FilterNSFW:    true,
			FilteredWords: []string{"spoiler"},
			Members:       []string{"1", "2"},
		},
	}
	links := map[string]*ServerLink{
		"1": {GuildID: "1", HubID: "hub_1_1700000000", ChannelID: "c1", DisplayName: "West", JoinedAt: created},
		"2": {GuildID: "2", HubID: "hub_1_1700000000", ChannelID: "c2", DisplayName: "East", JoinedAt: created},
	}

	if err := s.Save(ctx, hubs, links); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	gotHubs, gotLinks, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	h, ok := gotHubs["hub_1_1700000000"]
	if !ok {
		t.Fatal("hub missing after round trip")
	}
	if h.ID != "hub_1_1700000000" {
		t.Errorf("ID not rehydrated from map key: %q", h.ID)
	}
	if h.Name != "Crossroads" || !h.IsPublic || !h.FilterNSFW {
		t.Errorf("hub fields lost: %+v", h)
	}
	if !h.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", h.CreatedAt, created)
	}
	if len(h.Members) != 2 || len(h.FilteredWords) != 1 {
		t.Errorf("sets lost: members=%v words=%v", h.Members, h.FilteredWords)
	}
	l, ok := gotLinks["2"]
	if !ok {
		t.Fatal("link missing after round trip")
	}
	if l.GuildID != "2" || l.DisplayName != "East" || l.ChannelID != "c2" {
		t.Errorf("link fields lost: %+v", l)
	}
}

func TestStoreLoadDeduplicatesAndFoldsWords(t *testing.T) {
	s := testStore(t)
	doc := `{
	  "hubs": {
	    "h": {
	      "name": "n", "owner_guild_id": "1",
	      "created_at": "2026-03-01T12:00:00Z",
	      "filtered_words": ["Spoiler", "spoiler", "  LEAK  "],
	      "members": ["1", "1", "2"]
	    }
	  },
	  "server_links": {}
	}`
	if err := os.WriteFile(s.Path(), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	hubs, _, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	h := hubs["h"]
	if h == nil {
		t.Fatal("hub missing")
	}
	if len(h.Members) != 2 {
		t.Errorf("members not deduplicated: %v", h.Members)
	}
	if len(h.FilteredWords) != 2 {
		t.Errorf("words not deduplicated: %v", h.FilteredWords)
	}
	for _, w := range h.FilteredWords {
		if w != "spoiler" && w != "leak" {
			t.Errorf("word not case-folded: %q", w)
		}
	}
}

func TestStoreSaveIsAtomic(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, map[string]*Hub{}, map[string]*ServerLink{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// No temp residue next to the document.
	matches, err := filepath.Glob(s.Path() + ".tmp-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}
