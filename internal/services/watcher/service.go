package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
)

// Service watches the inbox folder and emits one file.new.detected event per
// distinct filename for the lifetime of the persisted known-files record. The
// list is never pruned: a file deleted and recreated under the same name is
// never re-emitted.
type Service struct {
	config *common.WatcherConfig
	settle time.Duration
	kv     interfaces.KeyValueStorage
	events interfaces.EventService
	logger arbor.ILogger

	mu      sync.Mutex
	started bool
	watcher *fsnotify.Watcher
	done    chan struct{}

	timerMu sync.Mutex
	pending map[string]*time.Timer

	// knownMu serializes the read-append-write of the known-files list so
	// concurrent settle timers cannot lose updates
	knownMu sync.Mutex
}

// NewService creates a new folder watcher service
func NewService(config *common.WatcherConfig, settle time.Duration, kv interfaces.KeyValueStorage, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		config:  config,
		settle:  settle,
		kv:      kv,
		events:  events,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
}

// Start begins watching the configured directory. At most one filesystem
// watcher exists per process; a second call is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if err := os.MkdirAll(s.config.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	if err := w.Add(s.config.Dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", s.config.Dir, err)
	}

	s.watcher = w
	s.done = make(chan struct{})
	s.started = true

	go s.loop(ctx)

	s.logger.Info().
		Str("dir", s.config.Dir).
		Dur("settle_delay", s.settle).
		Msg("Folder watcher started")

	return nil
}

// EnsureStarted is the scheduler-facing liveness hook. It starts the watcher
// if it is not running and is otherwise a no-op.
func (s *Service) EnsureStarted(ctx context.Context) error {
	s.mu.Lock()
	running := s.started
	s.mu.Unlock()

	if running {
		return nil
	}
	return s.Start(ctx)
}

// IsRunning reports whether the watcher is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stop shuts the watcher down
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.done)
	err := s.watcher.Close()
	s.started = false
	s.watcher = nil

	s.timerMu.Lock()
	for name, timer := range s.pending {
		timer.Stop()
		delete(s.pending, name)
	}
	s.timerMu.Unlock()

	s.logger.Info().Msg("Folder watcher stopped")
	return err
}

// loop consumes filesystem events until the watcher is stopped
func (s *Service) loop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				s.scheduleSettle(ctx, event.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Msg("Filesystem watcher error")
		}
	}
}

// scheduleSettle arms (or re-arms) the quiescence timer for a path. The file
// is only emitted once writes have stopped for the settle window, so partially
// written files never enter the pipeline.
func (s *Service) scheduleSettle(ctx context.Context, path string) {
	if !s.isVideoFile(path) {
		return
	}

	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if timer, ok := s.pending[path]; ok {
		timer.Reset(s.settle)
		return
	}

	s.pending[path] = time.AfterFunc(s.settle, func() {
		s.timerMu.Lock()
		delete(s.pending, path)
		s.timerMu.Unlock()

		s.handleSettled(ctx, path)
	})
}

// isVideoFile checks the path against the configured extensions
func (s *Service) isVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range s.config.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// handleSettled emits a discovery event for a quiesced file if its name has
// not been seen before
func (s *Service) handleSettled(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		s.logger.Debug().Str("path", path).Err(err).Msg("Settled file no longer present, skipping")
		return
	}

	fileName := filepath.Base(path)

	isNew, err := s.RecordIfNew(ctx, fileName)
	if err != nil {
		s.logger.Error().Err(err).Str("file", fileName).Msg("Failed to update known-files list")
		return
	}
	if !isNew {
		s.logger.Debug().Str("file", fileName).Msg("File already processed, skipping")
		return
	}

	traceID := common.NewTraceID()

	s.logger.Info().
		Str("file", fileName).
		Str("trace_id", traceID).
		Msg("New video file detected")

	if err := s.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventFileNewDetected,
		Payload: interfaces.FileDetectedPayload{
			TraceID:  traceID,
			FilePath: path,
			FileName: fileName,
		},
	}); err != nil {
		s.logger.Error().Err(err).Str("file", fileName).Msg("Failed to publish discovery event")
	}
}

// RecordIfNew appends fileName to the persisted known-files list. Returns true
// exactly once per distinct name; the list grows monotonically and is never
// pruned. Idempotent by name, not by content.
func (s *Service) RecordIfNew(ctx context.Context, fileName string) (bool, error) {
	s.knownMu.Lock()
	defer s.knownMu.Unlock()

	known, err := s.loadKnownFiles(ctx)
	if err != nil {
		return false, err
	}

	for _, name := range known {
		if name == fileName {
			return false, nil
		}
	}

	known = append(known, fileName)

	data, err := json.Marshal(known)
	if err != nil {
		return false, fmt.Errorf("failed to encode known-files list: %w", err)
	}

	if err := s.kv.Set(ctx, s.config.KnownFilesKey, string(data), "Filenames already emitted by the folder watcher"); err != nil {
		return false, fmt.Errorf("failed to persist known-files list: %w", err)
	}

	return true, nil
}

// loadKnownFiles reads the persisted list; absence is an empty list
func (s *Service) loadKnownFiles(ctx context.Context) ([]string, error) {
	raw, err := s.kv.Get(ctx, s.config.KnownFilesKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load known-files list: %w", err)
	}

	var known []string
	if err := json.Unmarshal([]byte(raw), &known); err != nil {
		return nil, fmt.Errorf("failed to decode known-files list: %w", err)
	}
	return known, nil
}
