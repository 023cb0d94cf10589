package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
)

const geminiEndpoint = "generativelanguage.googleapis.com"

// geminiClient реализует Client поверх Gemini API. У Gemini нет
// системной роли, поэтому реплики переотображаются в двухролевую
// схему user/model (см. mapTurns). Всегда без стриминга.
type geminiClient struct {
	client      *genai.Client
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
}

func newGeminiClient(cfg Config) (*geminiClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("AI model name is not set")
	}

	// Клиент создается и с пустым ключом: обнаружение моделей в этом
	// случае вернет пустой список, а генерация — транспортную ошибку.
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiClient{
		client:      client,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// SendMessage отправляет диалог через чат-сессию Gemini. Параметр
// onToken игнорируется: этот бэкенд по контракту не потоковый.
func (c *geminiClient) SendMessage(ctx context.Context, turns []model.ConversationTurn, _ TokenCallback) (string, error) {
	contents := mapTurns(turns)
	if len(contents) == 0 {
		return "", errors.New("conversation is empty")
	}

	gm := c.client.GenerativeModel(c.model)
	gm.SetTemperature(c.temperature)
	if c.maxTokens > 0 {
		gm.SetMaxOutputTokens(int32(c.maxTokens))
	}

	cs := gm.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	startTime := time.Now()
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"backend": "gemini", "model": c.model, "status": "error"}).Inc()
		return "", c.wrapTransport(err)
	}

	duration := time.Since(startTime)
	aiRequestDuration.With(prometheus.Labels{"backend": "gemini", "model": c.model}).Observe(duration.Seconds())

	text := candidateText(resp)
	if text == "" {
		aiRequestsTotal.With(prometheus.Labels{"backend": "gemini", "model": c.model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("empty response from model backend %s", geminiEndpoint)
	}

	aiRequestsTotal.With(prometheus.Labels{"backend": "gemini", "model": c.model, "status": "success"}).Inc()
	if resp.UsageMetadata != nil && resp.UsageMetadata.CandidatesTokenCount > 0 {
		aiCompletionTokens.With(prometheus.Labels{"backend": "gemini", "model": c.model}).Observe(float64(resp.UsageMetadata.CandidatesTokenCount))
	}

	log.Debug().Dur("duration", duration).Int("chars", len(text)).Msg("model response received")
	return text, nil
}

// ListModels возвращает модели, поддерживающие генерацию контента.
// При отсутствии ключа или ошибке авторизации — пустой список, без
// молчаливой подстановки модели по умолчанию.
func (c *geminiClient) ListModels(ctx context.Context) ([]string, error) {
	if c.apiKey == "" {
		log.Warn().Msg("Gemini API key is not set, model discovery returns nothing")
		return []string{}, nil
	}

	names := []string{}
	it := c.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("Gemini model discovery failed")
			return []string{}, nil
		}
		if !supportsGeneration(m) {
			continue
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

// Close освобождает соединение с API.
func (c *geminiClient) Close() error {
	return c.client.Close()
}

func supportsGeneration(m *genai.ModelInfo) bool {
	for _, method := range m.SupportedGenerationMethods {
		if method == "generateContent" {
			return true
		}
	}
	return false
}

// mapTurns переотображает реплики в схему Gemini: ведущий системный
// контент склеивается префиксом в первую пользовательскую реплику,
// assistant становится model. Системные реплики в середине диалога
// трактуются как пользовательские.
func mapTurns(turns []model.ConversationTurn) []*genai.Content {
	var systemPrefix []string
	i := 0
	for ; i < len(turns) && turns[i].Role == model.RoleSystem; i++ {
		systemPrefix = append(systemPrefix, turns[i].Content)
	}

	prefix := strings.Join(systemPrefix, "\n\n")
	contents := make([]*genai.Content, 0, len(turns)-i+1)

	for ; i < len(turns); i++ {
		role := "user"
		if turns[i].Role == model.RoleAssistant {
			role = "model"
		}

		text := turns[i].Content
		if prefix != "" && role == "user" {
			text = prefix + "\n\n" + text
			prefix = ""
		}

		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(text)},
		})
	}

	// Диалог из одних системных реплик: превращаем префикс в
	// единственную пользовательскую реплику.
	if prefix != "" {
		contents = append(contents, &genai.Content{
			Role:  "user",
			Parts: []genai.Part{genai.Text(prefix)},
		})
	}

	return contents
}

// candidateText склеивает текстовые части первого кандидата ответа.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// wrapTransport приводит ошибки Gemini API к *TransportError.
func (c *geminiClient) wrapTransport(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &TransportError{
			Endpoint:   geminiEndpoint,
			StatusCode: apiErr.Code,
			Body:       apiErr.Message,
			Err:        err,
		}
	}
	return &TransportError{Endpoint: geminiEndpoint, Err: err}
}
