package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// document is the on-disk shape of the bridge state. Map keys are always
// strings, even where they are semantically numeric platform IDs.
type document struct {
	Hubs        map[string]*Hub        `json:"hubs"`
	ServerLinks map[string]*ServerLink `json:"server_links"`
}

// Store owns the durable representation of the bridge state: a single JSON
// document rewritten whole on every mutation.
type Store struct {
	path   string
	logger *slog.Logger
}

func NewStore(log *slog.Logger, path string) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		path:   path,
		logger: log.With(slog.String("component", "hubstore")),
	}
}

// Path returns the location of the state document.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state document. A missing file yields empty state without
// error; a corrupt file yields empty state with a warning, so a bad document
// never keeps the bridge from starting.
func (s *Store) Load(ctx context.Context) (map[string]*Hub, map[string]*ServerLink, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("state file missing, starting empty", slog.String("path", s.path))
			return map[string]*Hub{}, map[string]*ServerLink{}, nil
		}
		return nil, nil, fmt.Errorf("read state: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("state file is corrupt, starting empty",
			slog.String("path", s.path),
			slog.Any("error", err),
		)
		return map[string]*Hub{}, map[string]*ServerLink{}, nil
	}

	hubs := doc.Hubs
	if hubs == nil {
		hubs = map[string]*Hub{}
	}
	links := doc.ServerLinks
	if links == nil {
		links = map[string]*ServerLink{}
	}
	for id, h := range hubs {
		h.ID = id
		h.Members = dedupSorted(h.Members)
		folded := make([]string, 0, len(h.FilteredWords))
		for _, w := range h.FilteredWords {
			if fw := FoldWord(w); fw != "" {
				folded = append(folded, fw)
			}
		}
		h.FilteredWords = dedupSorted(folded)
	}
	for guildID, l := range links {
		l.GuildID = guildID
	}
	return hubs, links, nil
}

// Save rewrites the whole document atomically: marshal, write a temp file in
// the same directory, rename over the target. On error the previous document
// stays in place and memory remains authoritative.
func (s *Store) Save(ctx context.Context, hubs map[string]*Hub, links map[string]*ServerLink) error {
	doc := document{Hubs: hubs, ServerLinks: links}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
