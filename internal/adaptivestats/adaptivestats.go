// Package adaptivestats implements the append-only, line-delimited JSON
// stats sink: one record per find() invocation, written behind a buffered
// channel by a dedicated background goroutine so the hot path never blocks
// on disk I/O. Records never carry document text.
package adaptivestats

import (
	"encoding/json"
	"log/slog"
	"os"
)

// Record is one find() invocation's statistics. No field may carry
// document text, only counts, hashes, and mode tags.
type Record struct {
	Timestamp       int64   `json:"ts"`
	QueryHash       string  `json:"query_hash"`
	ScannedFiles    int     `json:"scanned_files"`
	Candidates      int     `json:"candidates"`
	SemCacheHit     bool    `json:"sem_cache_hit"`
	SemCacheMode    string  `json:"sem_cache_mode"`
	SemCacheScore   *float64 `json:"sem_cache_score,omitempty"`
	LatencySavedMs  *int64  `json:"latency_saved_ms,omitempty"`
	ScoringMode     string  `json:"scoring_mode"`
	EstTokens       int     `json:"est_tokens"`
	MarginalGain    *float64 `json:"marginal_gain,omitempty"`
}

// Sink is a bounded, channel-backed writer to an append-only file. A
// dropped record (channel full) is itself swallowed, per the "write
// failures are swallowed and never fail the query" invariant.
type Sink struct {
	queue    chan Record
	stopCh   chan struct{}
	doneCh   chan struct{}
	disabled bool
}

// NewSink starts the background writer for path. An empty path disables
// the sink entirely (Record becomes a no-op), matching the default
// ADAPTIVE_STATS_PATH="" configuration.
func NewSink(path string) *Sink {
	if path == "" {
		return &Sink{disabled: true}
	}

	s := &Sink{
		queue:  make(chan Record, 256),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.run(path)
	return s
}

func (s *Sink) run(path string) {
	defer close(s.doneCh)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("adaptivestats: failed to open sink file, stats disabled", "path", path, "error", err)
		for {
			select {
			case <-s.queue:
			case <-s.stopCh:
				return
			}
		}
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for {
		select {
		case rec := <-s.queue:
			if err := enc.Encode(rec); err != nil {
				slog.Warn("adaptivestats: write failed", "error", err)
			}
		case <-s.stopCh:
			for {
				select {
				case rec := <-s.queue:
					if err := enc.Encode(rec); err != nil {
						slog.Warn("adaptivestats: write failed", "error", err)
					}
				default:
					return
				}
			}
		}
	}
}

// Record enqueues rec for asynchronous append. Never blocks: if the queue
// is full the record is dropped.
func (s *Sink) Record(rec Record) {
	if s == nil || s.disabled {
		return
	}
	select {
	case s.queue <- rec:
	default:
		slog.Warn("adaptivestats: queue full, dropping record")
	}
}

// Close stops the background writer and waits for it to drain. Must be
// called at most once.
func (s *Sink) Close() {
	if s == nil || s.disabled {
		return
	}
	close(s.stopCh)
	<-s.doneCh
}
