package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("component", "ai").Logger()

// TokenCallback вызывается синхронно на каждый фрагмент потокового
// ответа. Это чистый канал уведомлений: значение не возвращается и
// движком не потребляется; колбэк не должен блокировать.
type TokenCallback func(token string)

// Client предоставляет интерфейс для работы с API нейросети.
// Реализации взаимозаменяемы; вызывающий код никогда не зависит от
// конкретного бэкенда.
type Client interface {
	// SendMessage отправляет диалог модели и возвращает полный текст
	// ответа. В потоковом режиме onToken (если не nil) вызывается на
	// каждый фрагмент. Клиент не делает повторных попыток и не гасит
	// ошибки: сетевые сбои и не-2xx ответы поднимаются как *TransportError.
	SendMessage(ctx context.Context, turns []model.ConversationTurn, onToken TokenCallback) (string, error)

	// ListModels возвращает список доступных моделей бэкенда.
	ListModels(ctx context.Context) ([]string, error)
}

// Config содержит конфигурацию для клиента нейросети
type Config struct {
	Backend     string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Stream      bool
	Timeout     int
}

// New создает клиент нейросети в зависимости от конфигурации
func New(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Backend) {
	case "openai", "":
		log.Info().Str("baseURL", cfg.BaseURL).Str("model", cfg.Model).Bool("stream", cfg.Stream).Msg("using OpenAI-compatible AI backend")
		return newOpenAIClient(cfg)
	case "gemini":
		log.Info().Str("model", cfg.Model).Msg("using Gemini AI backend")
		return newGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown AI backend: %q", cfg.Backend)
	}
}

// TransportError описывает сбой на транспортном уровне: недоступный
// бэкенд (StatusCode == 0) или не-2xx HTTP ответ.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model backend %s returned HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("cannot reach model backend %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
