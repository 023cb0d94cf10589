package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
)

// Compile-time check.
var _ Store = (*FileStore)(nil)

// FileStore keeps the session as one JSON document at a fixed path,
// the local-storage analog for a single-process deployment.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a file-backed session store.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("store", "file").Str("path", path).Logger(),
	}
}

// Save overwrites the session file with the full state.
func (s *FileStore) Save(_ context.Context, state *model.GameState) error {
	if len(state.History) == 0 {
		s.logger.Debug().Msg("empty history, nothing to persist")
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize session state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads and validates the session file. Missing or corrupt data
// degrades to (nil, nil).
func (s *FileStore) Load(_ context.Context) (*model.GameState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug().Msg("no save data")
		} else {
			s.logger.Warn().Err(err).Msg("failed to read session file, treating as no save data")
		}
		return nil, nil
	}

	st, err := decodeState(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding invalid save data")
		return nil, nil
	}
	return st, nil
}
