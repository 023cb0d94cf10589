package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
)

// openAIClient реализует Client поверх OpenAI-совместимого
// chat-completions API (LM Studio, OpenRouter, сам OpenAI).
type openAIClient struct {
	client      *openai.Client
	baseURL     string
	model       string
	temperature float32
	maxTokens   int
	stream      bool
}

func newOpenAIClient(cfg Config) (*openAIClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("AI model name is not set")
	}

	// API ключ может быть пустым: локальные серверы его не требуют.
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 300 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &openAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		baseURL:     clientConfig.BaseURL,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		stream:      cfg.Stream,
	}, nil
}

// SendMessage отправляет диалог и возвращает полный текст ответа.
func (c *openAIClient) SendMessage(ctx context.Context, turns []model.ConversationTurn, onToken TokenCallback) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("conversation is empty")
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAIMessages(turns),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	if c.stream {
		return c.sendStreaming(ctx, req, onToken)
	}
	return c.sendBlocking(ctx, req)
}

func (c *openAIClient) sendBlocking(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	startTime := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"backend": "openai", "model": c.model, "status": "error"}).Inc()
		return "", c.wrapTransport(err)
	}

	duration := time.Since(startTime)
	aiRequestDuration.With(prometheus.Labels{"backend": "openai", "model": c.model}).Observe(duration.Seconds())

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		aiRequestsTotal.With(prometheus.Labels{"backend": "openai", "model": c.model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("empty response from model backend %s", c.baseURL)
	}

	aiRequestsTotal.With(prometheus.Labels{"backend": "openai", "model": c.model, "status": "success"}).Inc()
	if resp.Usage.CompletionTokens > 0 {
		aiCompletionTokens.With(prometheus.Labels{"backend": "openai", "model": c.model}).Observe(float64(resp.Usage.CompletionTokens))
	}

	log.Debug().Dur("duration", duration).Int("chars", len(resp.Choices[0].Message.Content)).Msg("model response received")
	return resp.Choices[0].Message.Content, nil
}

// sendStreaming читает SSE поток и склеивает фрагменты в полный текст.
// Построчное чтение data:-фрагментов, буферизация неполных строк и
// терминатор [DONE] обрабатываются внутри go-openai; здесь остается
// цикл Recv с вызовом onToken на каждый фрагмент.
func (c *openAIClient) sendStreaming(ctx context.Context, req openai.ChatCompletionRequest, onToken TokenCallback) (string, error) {
	req.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		aiRequestsTotal.With(prometheus.Labels{"backend": "openai", "model": c.model, "status": "error_stream_init"}).Inc()
		return "", c.wrapTransport(err)
	}
	defer stream.Close()

	startTime := time.Now()
	var builder strings.Builder
	var finalUsage *openai.Usage

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			aiRequestsTotal.With(prometheus.Labels{"backend": "openai", "model": c.model, "status": "error_stream_read"}).Inc()
			return "", c.wrapTransport(err)
		}

		// Usage приходит отдельным финальным фрагментом, не у всех бэкендов.
		if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
			finalUsage = resp.Usage
		}

		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		builder.WriteString(chunk)
		if onToken != nil {
			onToken(chunk)
		}
	}

	duration := time.Since(startTime)
	text := builder.String()
	if text == "" {
		aiRequestsTotal.With(prometheus.Labels{"backend": "openai", "model": c.model, "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("empty response from model backend %s", c.baseURL)
	}

	aiRequestsTotal.With(prometheus.Labels{"backend": "openai", "model": c.model, "status": "success_stream"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"backend": "openai", "model": c.model}).Observe(duration.Seconds())

	completionTokens := 0
	if finalUsage != nil {
		completionTokens = finalUsage.CompletionTokens
	} else {
		completionTokens = c.estimateTokens(text)
	}
	if completionTokens > 0 {
		aiCompletionTokens.With(prometheus.Labels{"backend": "openai", "model": c.model}).Observe(float64(completionTokens))
	}

	log.Debug().Dur("duration", duration).Int("chars", len(text)).Int("completionTokens", completionTokens).Msg("model stream finished")
	return text, nil
}

// estimateTokens оценивает число токенов ответа, когда бэкенд не
// прислал финальный Usage блок.
func (c *openAIClient) estimateTokens(text string) int {
	tke, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		// Локальные модели неизвестны tiktoken; cl100k_base как приближение.
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn().Err(err).Str("model", c.model).Msg("cannot get tokenizer, skipping token estimate")
			return 0
		}
	}
	return len(tke.Encode(text, nil, nil))
}

// ListModels запрашивает GET {baseUrl}/models. При любом сбое
// возвращает одноэлементный список с моделью из конфигурации.
func (c *openAIClient) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Str("baseURL", c.baseURL).Msg("model discovery failed, falling back to configured model")
		return []string{c.model}, nil
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return []string{c.model}, nil
	}
	return ids, nil
}

// wrapTransport приводит ошибки go-openai к *TransportError.
func (c *openAIClient) wrapTransport(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{
			Endpoint:   c.baseURL,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
			Err:        err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{
			Endpoint:   c.baseURL,
			StatusCode: reqErr.HTTPStatusCode,
			Body:       fmt.Sprint(reqErr.Err),
			Err:        err,
		}
	}
	return &TransportError{Endpoint: c.baseURL, Err: err}
}

func toOpenAIMessages(turns []model.ConversationTurn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}
	return messages
}
