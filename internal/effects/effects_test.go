package effects_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/effects"
)

func TestAmbientPlayer(t *testing.T) {
	player := effects.NewAmbientPlayer(zerolog.Nop())

	t.Run("Play sets the current track", func(t *testing.T) {
		require.NoError(t, player.Play("forest"))
		assert.Equal(t, "forest", player.Current())
	})

	t.Run("New track supersedes the previous one", func(t *testing.T) {
		require.NoError(t, player.Play("basement"))
		assert.Equal(t, "basement", player.Current())
	})

	t.Run("Stop silences playback", func(t *testing.T) {
		require.NoError(t, player.Stop())
		assert.Empty(t, player.Current())
	})

	t.Run("Stop on silence is a no-op", func(t *testing.T) {
		assert.NoError(t, player.Stop())
	})
}

func TestVoiceClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Available when health endpoint answers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := effects.NewVoiceClient(server.URL, time.Second, zerolog.Nop())
		assert.True(t, client.IsAvailable(ctx))
	})

	t.Run("Unavailable when server is down", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := server.URL
		server.Close()

		client := effects.NewVoiceClient(url, time.Second, zerolog.Nop())
		assert.False(t, client.IsAvailable(ctx))
	})

	t.Run("Speak posts text and voice id", func(t *testing.T) {
		var got map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/synthesize", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := effects.NewVoiceClient(server.URL, time.Second, zerolog.Nop())
		assert.True(t, client.Speak(ctx, "The cabin is cold.", "7"))
		assert.Equal(t, "The cabin is cold.", got["text"])
		assert.Equal(t, "7", got["voice_id"])
	})

	t.Run("Rejection and errors report false, never panic", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := effects.NewVoiceClient(server.URL, time.Second, zerolog.Nop())
		assert.False(t, client.Speak(ctx, "text", "1"))
		assert.False(t, client.Speak(ctx, "", "1"))
	})
}

func TestNopSpeech(t *testing.T) {
	nop := effects.NopSpeech{}
	assert.False(t, nop.IsAvailable(context.Background()))
	assert.False(t, nop.Speak(context.Background(), "text", "1"))
}
