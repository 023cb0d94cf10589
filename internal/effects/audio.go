package effects

import (
	"sync"

	"github.com/rs/zerolog"
)

// AudioPlayer controls the background soundtrack of a session.
// Implementations must tolerate redundant calls: Play replaces whatever
// is currently playing, Stop on silence is a no-op.
type AudioPlayer interface {
	Play(track string) error
	Stop() error
}

// AmbientPlayer tracks the active soundtrack without producing actual
// audio. Playback is delegated to the client, the server only records
// what should be heard so that state endpoints can report it.
type AmbientPlayer struct {
	mu      sync.Mutex
	current string
	logger  zerolog.Logger
}

func NewAmbientPlayer(logger zerolog.Logger) *AmbientPlayer {
	return &AmbientPlayer{logger: logger.With().Str("component", "audio").Logger()}
}

// Play starts the given track, superseding any previous one.
func (p *AmbientPlayer) Play(track string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != "" && p.current != track {
		p.logger.Debug().Str("from", p.current).Str("to", track).Msg("switching ambient track")
	}
	p.current = track
	p.logger.Info().Str("track", track).Msg("ambient track playing")
	return nil
}

// Stop silences playback. Stopping an already silent player is fine.
func (p *AmbientPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == "" {
		return nil
	}
	p.logger.Info().Str("track", p.current).Msg("ambient track stopped")
	p.current = ""
	return nil
}

// Current returns the active track, empty when silent.
func (p *AmbientPlayer) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
