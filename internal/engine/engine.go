package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/ai"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/effects"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/extract"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/session"
)

// ambientTrack is the looping background track started with every new
// session and stopped when the story reaches an ending.
const ambientTrack = "horror_ambient"

// turnFailedMessage is shown to the player when a turn is rolled back.
const turnFailedMessage = "The story could not continue this time. Your action was not recorded — try again."

// TurnResult is what every engine operation hands back to the transport
// layer: the current scene plus, on a failed turn, a user-facing message.
type TurnResult struct {
	Story      string           `json:"story"`
	Choices    []model.Choice   `json:"choices"`
	Status     model.GameStatus `json:"status"`
	ResultText string           `json:"result_text,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Deps carries everything an Engine needs. Audio and Speech may be nil,
// in which case the corresponding effects are skipped.
type Deps struct {
	Client  ai.Client
	Store   session.Store
	Audio   effects.AudioPlayer
	Speech  effects.Speech
	VoiceID string
	OnToken ai.TokenCallback
	Logger  zerolog.Logger
}

// Engine is the narrative state machine for a single session. All
// operations serialize on an internal mutex so concurrent callers cannot
// interleave a turn's history append with another turn's rollback.
type Engine struct {
	mu      sync.Mutex
	state   *model.GameState
	client  ai.Client
	store   session.Store
	audio   effects.AudioPlayer
	speech  effects.Speech
	voiceID string
	onToken ai.TokenCallback
	logger  zerolog.Logger
}

func New(deps Deps) *Engine {
	return NewWithState(deps, model.NewGameState())
}

// NewWithState builds an engine around previously saved state, used when
// resuming a session from the store.
func NewWithState(deps Deps, state *model.GameState) *Engine {
	return &Engine{
		state:   state,
		client:  deps.Client,
		store:   deps.Store,
		audio:   deps.Audio,
		speech:  deps.Speech,
		voiceID: deps.VoiceID,
		onToken: deps.OnToken,
		logger:  deps.Logger.With().Str("component", "engine").Logger(),
	}
}

// StartGame resets the session and asks the model for the opening scene.
// Unlike MakeChoice there is no prior state to fall back to, so model and
// extraction failures propagate to the caller.
func (e *Engine) StartGame(ctx context.Context) (*TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startGameLocked(ctx)
}

func (e *Engine) startGameLocked(ctx context.Context) (*TurnResult, error) {
	e.state = model.NewGameState()

	if e.audio != nil {
		if err := e.audio.Play(ambientTrack); err != nil {
			e.logger.Warn().Err(err).Msg("failed to start ambient track")
		}
	}

	turns := []model.ConversationTurn{
		{Role: model.RoleSystem, Content: systemPrompt},
		{Role: model.RoleUser, Content: openingPrompt},
	}

	raw, err := e.client.SendMessage(ctx, turns, e.onToken)
	if err != nil {
		return nil, fmt.Errorf("opening scene request failed: %w", err)
	}

	payload, err := extract.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("opening scene payload: %w", err)
	}
	if payload.IsTerminal() {
		return nil, fmt.Errorf("opening scene payload: model ended the story before it began (status %q)", payload.Status)
	}

	e.state.Story = payload.Story
	e.state.History = []string{payload.Story}
	e.state.Choices = payload.Choices

	e.persist(ctx)
	e.speak(payload.Story)

	e.logger.Info().Int("choices", len(payload.Choices)).Msg("session started")
	return e.snapshotResult(""), nil
}

// MakeChoice advances the story by one turn. The reserved "restart" id
// begins a fresh session instead of reaching the model. Any failure after
// the action is appended rolls history and the step counter back to their
// pre-call values and returns the prior scene with a user-facing message;
// the error return is reserved for restart, which shares StartGame's
// propagation contract.
func (e *Engine) MakeChoice(ctx context.Context, choiceID string) (*TurnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if choiceID == model.RestartChoiceID {
		return e.startGameLocked(ctx)
	}

	if e.state.Status.IsTerminal() {
		e.logger.Warn().Str("choice_id", choiceID).Msg("choice after ending ignored")
		return e.snapshotResult("The story has ended. Restart to begin a new one."), nil
	}

	action := e.resolveChoice(choiceID)
	prevLen := len(e.state.History)
	prevStep := e.state.CurrentStep

	e.state.History = append(e.state.History, action)
	e.state.CurrentStep++

	raw, err := e.client.SendMessage(ctx, e.buildConversation(action), e.onToken)
	if err != nil {
		return e.rollback(prevLen, prevStep, err), nil
	}

	payload, err := extract.Extract(raw)
	if err != nil {
		return e.rollback(prevLen, prevStep, err), nil
	}

	e.apply(ctx, payload)

	e.logger.Info().
		Int("step", e.state.CurrentStep).
		Str("status", string(e.state.Status)).
		Msg("turn completed")
	return e.snapshotResult(""), nil
}

// ResetGame discards all session state without contacting the model.
func (e *Engine) ResetGame() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = model.NewGameState()
	if e.audio != nil {
		if err := e.audio.Stop(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to stop ambient track")
		}
	}
}

// GetState returns a deep copy of the session state.
func (e *Engine) GetState() *model.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// resolveChoice maps a choice id to its action text. Unknown ids never
// fail the turn, they degrade to a generic action description.
func (e *Engine) resolveChoice(choiceID string) string {
	for _, c := range e.state.Choices {
		if c.ID == choiceID {
			return c.Title
		}
	}
	return fmt.Sprintf("%s executed", choiceID)
}

// buildConversation replays the full history as alternating turns. Even
// indices are scene text authored by the model, odd indices are player
// actions. The just-appended action is not replayed verbatim; it arrives
// inside the closing judge instruction instead.
func (e *Engine) buildConversation(action string) []model.ConversationTurn {
	history := e.state.History[:len(e.state.History)-1]
	turns := make([]model.ConversationTurn, 0, len(history)+2)
	turns = append(turns, model.ConversationTurn{Role: model.RoleSystem, Content: systemPrompt})

	for i, entry := range history {
		role := model.RoleAssistant
		if i%2 == 1 {
			role = model.RoleUser
		}
		turns = append(turns, model.ConversationTurn{Role: role, Content: entry})
	}

	turns = append(turns, model.ConversationTurn{
		Role:    model.RoleUser,
		Content: fmt.Sprintf(judgePromptFormat, action),
	})
	return turns
}

// apply commits a validated payload to session state and fires the
// effectors. It must only be called after the turn can no longer fail.
func (e *Engine) apply(ctx context.Context, payload *model.NarrativePayload) {
	e.state.Story = payload.Story

	if payload.IsTerminal() {
		e.state.Status = payload.Status
		e.state.ResultText = payload.Description
		e.state.Choices = []model.Choice{{
			ID:          model.RestartChoiceID,
			Title:       "Start over",
			Description: "Begin a new story",
		}}
		if e.audio != nil {
			if err := e.audio.Stop(); err != nil {
				e.logger.Warn().Err(err).Msg("failed to stop ambient track")
			}
		}
	} else {
		if payload.Status.Known() {
			e.state.Status = payload.Status
		}
		e.state.Choices = payload.Choices
	}

	e.state.History = append(e.state.History, payload.Story)

	e.persist(ctx)
	e.speak(payload.Story)
}

// rollback undoes the action append of a failed turn. The returned result
// carries the scene exactly as it was before the call.
func (e *Engine) rollback(prevLen, prevStep int, cause error) *TurnResult {
	e.state.History = e.state.History[:prevLen]
	e.state.CurrentStep = prevStep
	e.logger.Warn().Err(cause).Int("step", prevStep).Msg("turn failed, rolled back")
	return e.snapshotResult(turnFailedMessage)
}

// persist writes state to the store. Persistence failures never fail a
// turn: the in-memory session stays authoritative.
func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, e.state); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist session state")
	}
}

// speak narrates the scene in the background. The request context is not
// reused because narration routinely outlives the HTTP request.
func (e *Engine) speak(text string) {
	if e.speech == nil || text == "" {
		return
	}
	voiceID := e.voiceID
	sp := e.speech
	logger := e.logger
	go func() {
		ctx := context.Background()
		if !sp.IsAvailable(ctx) {
			return
		}
		if !sp.Speak(ctx, text, voiceID) {
			logger.Debug().Msg("voice synthesis declined the scene text")
		}
	}()
}

func (e *Engine) snapshotResult(errMsg string) *TurnResult {
	choices := make([]model.Choice, len(e.state.Choices))
	copy(choices, e.state.Choices)
	return &TurnResult{
		Story:      e.state.Story,
		Choices:    choices,
		Status:     e.state.Status,
		ResultText: e.state.ResultText,
		Error:      errMsg,
	}
}
