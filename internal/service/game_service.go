package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/ai"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/effects"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/engine"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoSaveData      = errors.New("no save data for session")
)

// StoreFactory builds a session store scoped to one session id.
type StoreFactory func(id uuid.UUID) session.Store

// GameService owns the live sessions. Each session gets its own engine
// with a private ambient player; the model client and the voice service
// are shared.
type GameService struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*engine.Engine

	client   ai.Client
	newStore StoreFactory
	speech   effects.Speech
	voiceID  string
	logger   zerolog.Logger
}

func NewGameService(client ai.Client, newStore StoreFactory, speech effects.Speech, voiceID string, logger zerolog.Logger) *GameService {
	return &GameService{
		sessions: make(map[uuid.UUID]*engine.Engine),
		client:   client,
		newStore: newStore,
		speech:   speech,
		voiceID:  voiceID,
		logger:   logger.With().Str("component", "game_service").Logger(),
	}
}

// StartSession creates a fresh session and plays the opening turn.
// If the opening turn fails the session is not registered.
func (s *GameService) StartSession(ctx context.Context) (uuid.UUID, *engine.TurnResult, error) {
	id := uuid.New()
	eng := s.buildEngine(id, nil)

	result, err := eng.StartGame(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id.String()).Msg("failed to start session")
		return uuid.Nil, nil, err
	}

	s.mu.Lock()
	s.sessions[id] = eng
	s.mu.Unlock()

	s.logger.Info().Str("session_id", id.String()).Msg("session created")
	return id, result, nil
}

// MakeChoice forwards a choice to the session's engine.
func (s *GameService) MakeChoice(ctx context.Context, id uuid.UUID, choiceID string) (*engine.TurnResult, error) {
	eng, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return eng.MakeChoice(ctx, choiceID)
}

// GetState returns a copy of the session's full state.
func (s *GameService) GetState(_ context.Context, id uuid.UUID) (*model.GameState, error) {
	eng, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return eng.GetState(), nil
}

// ResumeSession rebuilds a session from persisted state. A session that
// is already live is returned as-is; otherwise the store is consulted,
// and missing or corrupt save data surfaces as ErrNoSaveData.
func (s *GameService) ResumeSession(ctx context.Context, id uuid.UUID) (*engine.TurnResult, error) {
	s.mu.RLock()
	eng, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return snapshot(eng.GetState()), nil
	}

	store := s.newStore(id)
	state, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNoSaveData
	}

	eng = s.buildEngine(id, state)

	s.mu.Lock()
	// Another request may have resumed the same session concurrently.
	if existing, ok := s.sessions[id]; ok {
		eng = existing
	} else {
		s.sessions[id] = eng
	}
	s.mu.Unlock()

	s.logger.Info().Str("session_id", id.String()).Msg("session resumed")
	return snapshot(eng.GetState()), nil
}

// DropSession removes a live session. Persisted save data is kept so the
// session can be resumed later.
func (s *GameService) DropSession(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eng, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	eng.ResetGame()
	delete(s.sessions, id)
	s.logger.Info().Str("session_id", id.String()).Msg("session dropped")
	return nil
}

// ListModels asks the configured backend which models it offers.
func (s *GameService) ListModels(ctx context.Context) ([]string, error) {
	return s.client.ListModels(ctx)
}

func (s *GameService) lookup(id uuid.UUID) (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eng, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return eng, nil
}

func (s *GameService) buildEngine(id uuid.UUID, state *model.GameState) *engine.Engine {
	deps := engine.Deps{
		Client:  s.client,
		Store:   s.newStore(id),
		Audio:   effects.NewAmbientPlayer(s.logger),
		Speech:  s.speech,
		VoiceID: s.voiceID,
		Logger:  s.logger.With().Str("session_id", id.String()).Logger(),
	}
	if state == nil {
		return engine.New(deps)
	}
	return engine.NewWithState(deps, state)
}

func snapshot(state *model.GameState) *engine.TurnResult {
	return &engine.TurnResult{
		Story:      state.Story,
		Choices:    state.Choices,
		Status:     state.Status,
		ResultText: state.ResultText,
	}
}
