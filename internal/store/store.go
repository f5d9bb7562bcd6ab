// Package store persists the notified-URL set and the event snapshot.
//
// JSONStore keeps both documents as JSON blobs in any BlobStore backend.
// The notified set only ever grows; the snapshot is replaced on every run.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

// ErrNotFound is returned by a BlobStore when the object does not exist.
var ErrNotFound = errors.New("object not found")

const jsonContentType = "application/json"

// BlobStore reads and writes whole objects by path.
type BlobStore interface {
	GetObject(ctx context.Context, path string) ([]byte, error)
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// Keys names the two state objects.
type Keys struct {
	Notified string
	Snapshot string
}

// DefaultKeys are the object names used when none are configured.
var DefaultKeys = Keys{
	Notified: "notified_event_urls.json",
	Snapshot: "cate_blanchett_events.json",
}

// JSONStore implements harvest.NotifiedStore and harvest.SnapshotStore.
type JSONStore struct {
	blobs  BlobStore
	keys   Keys
	logger *zap.Logger
}

// NewJSON builds a JSONStore over blobs. Empty keys take DefaultKeys.
func NewJSON(blobs BlobStore, keys Keys, logger *zap.Logger) *JSONStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keys.Notified == "" {
		keys.Notified = DefaultKeys.Notified
	}
	if keys.Snapshot == "" {
		keys.Snapshot = DefaultKeys.Snapshot
	}
	return &JSONStore{blobs: blobs, keys: keys, logger: logger}
}

// LoadNotified returns the persisted set. A missing object is an empty set.
// Content that is not a JSON string list is logged and treated as empty.
// Read failures return an empty set together with the error.
func (s *JSONStore) LoadNotified(ctx context.Context) (harvest.URLSet, error) {
	data, err := s.blobs.GetObject(ctx, s.keys.Notified)
	if errors.Is(err, ErrNotFound) {
		return harvest.NewURLSet(), nil
	}
	if err != nil {
		return harvest.NewURLSet(), fmt.Errorf("read notified set: %w", err)
	}

	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		s.logger.Warn("notified set is unreadable, starting empty",
			zap.String("key", s.keys.Notified),
			zap.Error(err),
		)
		return harvest.NewURLSet(), nil
	}
	return harvest.NewURLSet(urls...), nil
}

// SaveNotified writes the union of set and the stored list as a sorted JSON
// list, so entries written by an earlier run are never dropped. When the
// stored list cannot be read nothing is written. Unparsable content is
// replaced.
func (s *JSONStore) SaveNotified(ctx context.Context, set harvest.URLSet) error {
	merged := harvest.NewURLSet(set.Sorted()...)
	data, err := s.blobs.GetObject(ctx, s.keys.Notified)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("write notified set: read stored set: %w", err)
	default:
		var stored []string
		if err := json.Unmarshal(data, &stored); err == nil {
			for _, url := range stored {
				merged.Add(url)
			}
		}
	}

	urls := merged.Sorted()
	if urls == nil {
		urls = []string{}
	}
	if err := s.put(ctx, s.keys.Notified, urls); err != nil {
		return fmt.Errorf("write notified set: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the snapshot with events.
func (s *JSONStore) SaveSnapshot(ctx context.Context, events []harvest.Candidate) error {
	if events == nil {
		events = []harvest.Candidate{}
	}
	if err := s.put(ctx, s.keys.Snapshot, events); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (s *JSONStore) put(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	uri, err := s.blobs.PutObject(ctx, key, jsonContentType, bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.logger.Debug("state object written", zap.String("key", key), zap.String("uri", uri))
	return nil
}
