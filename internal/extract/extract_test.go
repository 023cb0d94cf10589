package extract_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/extract"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
)

func TestExtract(t *testing.T) {
	t.Run("Plain continuation payload", func(t *testing.T) {
		raw := `{"status":"continuing","story":"You wake in a cabin.","choices":[{"id":"c1","title":"Look around","description":"Survey the room"}]}`

		payload, err := extract.Extract(raw)
		require.NoError(t, err)
		assert.Equal(t, model.StatusContinuing, payload.Status)
		assert.Equal(t, "You wake in a cabin.", payload.Story)
		require.Len(t, payload.Choices, 1)
		assert.Equal(t, "c1", payload.Choices[0].ID)
		assert.Equal(t, "Look around", payload.Choices[0].Title)
	})

	t.Run("JSON surrounded by prose", func(t *testing.T) {
		raw := "Sure, here is the next scene:\n" +
			`{"status":"continuing","story":"The hallway stretches on.","choices":[]}` +
			"\nLet me know if you want more."

		payload, err := extract.Extract(raw)
		require.NoError(t, err)
		assert.Equal(t, "The hallway stretches on.", payload.Story)
	})

	t.Run("Reasoning annotations are stripped", func(t *testing.T) {
		raw := "<think>The player opened the door, {so} the monster should appear.</think>" +
			`{"status":"continuing","story":"Something moves in the dark.","choices":[{"id":"run","title":"Run","description":"Flee down the stairs"}]}` +
			"<think>done</think>"

		payload, err := extract.Extract(raw)
		require.NoError(t, err)
		assert.Equal(t, "Something moves in the dark.", payload.Story)
		assert.Len(t, payload.Choices, 1)
	})

	t.Run("Unmatched reasoning marker left in place", func(t *testing.T) {
		raw := `<think>no close marker {"status":"continuing","story":"s","choices":[]}`

		payload, err := extract.Extract(raw)
		require.NoError(t, err)
		assert.Equal(t, "s", payload.Story)
	})

	t.Run("Terminal payload keeps status and description", func(t *testing.T) {
		raw := `{"status":"gameover","story":"The door was locked.","description":"You suffocate."}`

		payload, err := extract.Extract(raw)
		require.NoError(t, err)
		assert.Equal(t, model.StatusGameOver, payload.Status)
		assert.Equal(t, "The door was locked.", payload.Story)
		assert.Equal(t, "You suffocate.", payload.Description)
		assert.True(t, payload.IsTerminal())
	})

	t.Run("Missing choices default to empty list", func(t *testing.T) {
		raw := `{"status":"continuing","story":"Silence."}`

		payload, err := extract.Extract(raw)
		require.NoError(t, err)
		require.NotNil(t, payload.Choices)
		assert.Empty(t, payload.Choices)
	})

	t.Run("Unknown status treated as continuation", func(t *testing.T) {
		raw := `{"status":"paused","story":"s","choices":[]}`

		payload, err := extract.Extract(raw)
		require.NoError(t, err)
		assert.Equal(t, model.StatusContinuing, payload.Status)
	})

	t.Run("No object found", func(t *testing.T) {
		payload, err := extract.Extract("the model refused to answer")
		assert.Nil(t, payload)
		assert.ErrorIs(t, err, extract.ErrNoJSONFound)
		assert.NotErrorIs(t, err, extract.ErrInvalidJSON)
	})

	t.Run("Reversed braces count as no object", func(t *testing.T) {
		_, err := extract.Extract("} nothing here {")
		assert.ErrorIs(t, err, extract.ErrNoJSONFound)
	})

	t.Run("Malformed JSON is a distinct error", func(t *testing.T) {
		payload, err := extract.Extract(`{"status":"continuing","story":}`)
		assert.Nil(t, payload)
		assert.ErrorIs(t, err, extract.ErrInvalidJSON)
		assert.NotErrorIs(t, err, extract.ErrNoJSONFound)
	})

	t.Run("Empty input", func(t *testing.T) {
		_, err := extract.Extract("")
		assert.ErrorIs(t, err, extract.ErrNoJSONFound)
	})
}

func TestIsExtractionError(t *testing.T) {
	assert.True(t, extract.IsExtractionError(extract.ErrNoJSONFound))
	assert.True(t, extract.IsExtractionError(extract.ErrInvalidJSON))
	assert.False(t, extract.IsExtractionError(errors.New("network down")))
	assert.False(t, extract.IsExtractionError(nil))
}
