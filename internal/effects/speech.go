package effects

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Speech narrates scene text through an external TTS service. Narration
// is strictly best-effort: neither method ever returns an error, a
// failed synthesis only means the scene goes unvoiced.
type Speech interface {
	// IsAvailable probes the service health endpoint.
	IsAvailable(ctx context.Context) bool
	// Speak submits text for synthesis and reports whether the service
	// accepted it.
	Speak(ctx context.Context, text, voiceID string) bool
}

// VoiceClient talks to a local voice synthesis server over HTTP.
type VoiceClient struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewVoiceClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *VoiceClient {
	return &VoiceClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "speech").Logger(),
	}
}

func (c *VoiceClient) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Msg("voice service unreachable")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *VoiceClient) Speak(ctx context.Context, text, voiceID string) bool {
	if text == "" {
		return false
	}

	payload, err := json.Marshal(map[string]string{
		"text":     text,
		"voice_id": voiceID,
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("voice synthesis request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Err(fmt.Errorf("unexpected status %d", resp.StatusCode)).Msg("voice synthesis rejected")
		return false
	}
	return true
}

// NopSpeech is used when no voice service is configured.
type NopSpeech struct{}

func (NopSpeech) IsAvailable(context.Context) bool { return false }

func (NopSpeech) Speak(context.Context, string, string) bool { return false }
