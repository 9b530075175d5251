package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"webgate/models"
)

const statsFileName = "webgate-stats.json"

// StatsSnapshot is a point-in-time copy of the counters. It is also the
// on-disk JSON structure.
type StatsSnapshot struct {
	// Responses counts responses per outcome name ("serve", "not-found", ...).
	Responses   map[string]int64 `json:"responses"`
	BytesServed int64            `json:"bytes_served"`
}

// OutcomeStats counts responses per outcome and the bytes sent for served
// files. All methods are safe on a nil receiver, which records nothing.
type OutcomeStats struct {
	mu     sync.Mutex
	counts map[models.OutcomeKind]int64
	bytes  int64
	dirty  bool

	writeMu sync.Mutex // serialises Flush
	path    string     // empty when persistence is disabled
}

// NewOutcomeStats returns counters persisted under dir, loading any totals
// already on disk. An empty dir keeps the counters in memory only. As with
// the first start of a fresh directory, a missing file is written right away
// so permission problems surface at startup.
func NewOutcomeStats(dir string) *OutcomeStats {
	s := &OutcomeStats{counts: make(map[models.OutcomeKind]int64)}
	if dir == "" {
		return s
	}
	s.path = filepath.Join(dir, statsFileName)

	f, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("stats: could not open %s: %v", s.path, err)
			return s
		}
		if err := writeStats(s.path, s.Snapshot()); err != nil {
			log.Printf("stats: could not create %s: %v", s.path, err)
		}
		return s
	}
	defer f.Close()

	var snap StatsSnapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		log.Printf("stats: could not parse %s: %v; starting from zero", s.path, err)
		return s
	}
	for k := models.Serve; k <= models.NotFound; k++ {
		if n := snap.Responses[k.String()]; n > 0 {
			s.counts[k] = n
		}
	}
	s.bytes = snap.BytesServed
	return s
}

// Record counts one response of the given kind. n is only added to the
// served-bytes total for Serve outcomes.
func (s *OutcomeStats) Record(kind models.OutcomeKind, n int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.counts[kind]++
	if kind == models.Serve {
		s.bytes += int64(n)
	}
	s.dirty = true
	s.mu.Unlock()
}

// Snapshot returns the current counters. Every outcome name is present.
func (s *OutcomeStats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{Responses: make(map[string]int64)}
	for k := models.Serve; k <= models.NotFound; k++ {
		snap.Responses[k.String()] = 0
	}
	if s == nil {
		return snap
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, n := range s.counts {
		snap.Responses[k.String()] = n
	}
	snap.BytesServed = s.bytes
	return snap
}

// Flush writes the counters to disk if anything changed since the last
// flush. It is a no-op when persistence is disabled.
func (s *OutcomeStats) Flush() error {
	if s == nil || s.path == "" {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.dirty = false
	s.mu.Unlock()

	if err := writeStats(s.path, s.Snapshot()); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	return nil
}

// Run flushes every interval until ctx is done, then flushes one last time.
func (s *OutcomeStats) Run(ctx context.Context, interval time.Duration) {
	if s == nil || s.path == "" {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := s.Flush(); err != nil {
				log.Printf("stats: %v", err)
			}
		case <-ctx.Done():
			if err := s.Flush(); err != nil {
				log.Printf("stats: %v", err)
			}
			return
		}
	}
}

// writeStats atomically replaces filePath with data.
func writeStats(filePath string, data StatsSnapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".webgate-stats-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := json.NewEncoder(tmp).Encode(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("could not write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not rename %s to %s: %w", tmpName, filePath, err)
	}
	return nil
}
