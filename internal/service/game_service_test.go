package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/ai"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/service"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/session"
)

const openingResponse = `{"status":"continuing","story":"You wake in a cabin.","choices":[{"id":"c1","title":"Look around","description":"Survey the room"}]}`

type mockAIClient struct {
	mock.Mock
}

func (m *mockAIClient) SendMessage(ctx context.Context, turns []model.ConversationTurn, onToken ai.TokenCallback) (string, error) {
	args := m.Called(ctx, turns, onToken)
	return args.String(0), args.Error(1)
}

func (m *mockAIClient) ListModels(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// memStores hands out one in-memory store per session id, shared across
// resumes of the same id.
type memStores struct {
	mu     sync.Mutex
	states map[uuid.UUID]*model.GameState
}

func newMemStores() *memStores {
	return &memStores{states: make(map[uuid.UUID]*model.GameState)}
}

func (f *memStores) factory(id uuid.UUID) session.Store {
	return &memStore{id: id, parent: f}
}

type memStore struct {
	id     uuid.UUID
	parent *memStores
}

func (s *memStore) Save(_ context.Context, state *model.GameState) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.parent.states[s.id] = state.Clone()
	return nil
}

func (s *memStore) Load(context.Context) (*model.GameState, error) {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	return s.parent.states[s.id], nil
}

func newTestService(client ai.Client, stores *memStores) *service.GameService {
	return service.NewGameService(client, stores.factory, nil, "", zerolog.Nop())
}

func TestGameService_Sessions(t *testing.T) {
	ctx := context.Background()

	t.Run("StartSession registers a playable session", func(t *testing.T) {
		client := new(mockAIClient)
		svc := newTestService(client, newMemStores())

		client.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(openingResponse, nil).Once()

		id, result, err := svc.StartSession(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		assert.Equal(t, "You wake in a cabin.", result.Story)

		state, err := svc.GetState(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, state.CurrentStep)
	})

	t.Run("Failed start registers nothing", func(t *testing.T) {
		client := new(mockAIClient)
		svc := newTestService(client, newMemStores())

		client.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("backend down")).Once()

		id, result, err := svc.StartSession(ctx)
		assert.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, uuid.Nil, id)
	})

	t.Run("MakeChoice reaches the right session", func(t *testing.T) {
		client := new(mockAIClient)
		svc := newTestService(client, newMemStores())

		client.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(openingResponse, nil).Once()
		id, _, err := svc.StartSession(ctx)
		require.NoError(t, err)

		next := `{"status":"continuing","story":"The room is empty.","choices":[]}`
		client.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(next, nil).Once()

		result, err := svc.MakeChoice(ctx, id, "c1")
		require.NoError(t, err)
		assert.Equal(t, "The room is empty.", result.Story)
	})

	t.Run("Unknown session id", func(t *testing.T) {
		svc := newTestService(new(mockAIClient), newMemStores())

		_, err := svc.MakeChoice(ctx, uuid.New(), "c1")
		assert.ErrorIs(t, err, service.ErrSessionNotFound)

		_, err = svc.GetState(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrSessionNotFound)

		err = svc.DropSession(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrSessionNotFound)
	})

	t.Run("Dropped session can be resumed from the store", func(t *testing.T) {
		client := new(mockAIClient)
		stores := newMemStores()
		svc := newTestService(client, stores)

		client.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(openingResponse, nil).Once()
		id, _, err := svc.StartSession(ctx)
		require.NoError(t, err)

		require.NoError(t, svc.DropSession(ctx, id))
		_, err = svc.GetState(ctx, id)
		assert.ErrorIs(t, err, service.ErrSessionNotFound)

		result, err := svc.ResumeSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "You wake in a cabin.", result.Story)
		require.Len(t, result.Choices, 1)
		assert.Equal(t, "c1", result.Choices[0].ID)

		state, err := svc.GetState(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"You wake in a cabin."}, state.History)
	})

	t.Run("Resume without save data", func(t *testing.T) {
		svc := newTestService(new(mockAIClient), newMemStores())

		_, err := svc.ResumeSession(ctx, uuid.New())
		assert.ErrorIs(t, err, service.ErrNoSaveData)
	})

	t.Run("Resume of a live session returns its current state", func(t *testing.T) {
		client := new(mockAIClient)
		svc := newTestService(client, newMemStores())

		client.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(openingResponse, nil).Once()
		id, _, err := svc.StartSession(ctx)
		require.NoError(t, err)

		result, err := svc.ResumeSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "You wake in a cabin.", result.Story)
		// no extra model call was made
		client.AssertNumberOfCalls(t, "SendMessage", 1)
	})
}

func TestGameService_ListModels(t *testing.T) {
	client := new(mockAIClient)
	svc := newTestService(client, newMemStores())

	client.On("ListModels", mock.Anything).Return([]string{"llama-3-8b"}, nil).Once()

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama-3-8b"}, models)
}
