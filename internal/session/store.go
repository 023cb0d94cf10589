package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
)

// ErrInvalidState marks persisted data that failed structural validation.
// It never crosses the Store boundary: Load degrades it to (nil, nil).
var ErrInvalidState = errors.New("persisted session state failed validation")

// Store persists the full game state under a single well-known slot,
// overwritten wholesale on every save.
//
// Save skips (log only) when history is empty — there is nothing
// meaningful to persist. Load returns (nil, nil) on missing data, parse
// failure, or structural mismatch; it never returns an error for bad
// data, only logs it.
type Store interface {
	Save(ctx context.Context, state *model.GameState) error
	Load(ctx context.Context) (*model.GameState, error)
}

// decodeState deserializes and structurally validates a persisted record.
func decodeState(data []byte) (*model.GameState, error) {
	var st model.GameState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := validateState(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// validateState checks the structural invariants of a loaded record:
// history is a sequence of strings (enforced by decoding), the step
// counter is non-negative and the status is one of the known tags.
func validateState(st *model.GameState) error {
	if st.History == nil {
		return fmt.Errorf("%w: history is missing", ErrInvalidState)
	}
	if st.CurrentStep < 0 {
		return fmt.Errorf("%w: negative step counter %d", ErrInvalidState, st.CurrentStep)
	}
	if !st.Status.Known() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidState, st.Status)
	}
	if st.Choices == nil {
		st.Choices = []model.Choice{}
	}
	return nil
}
