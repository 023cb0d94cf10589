package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/model"
)

// Ошибки извлечения. Обе относятся к классу ExtractionError и различимы
// через errors.Is: "объект не найден" и "найден, но JSON невалиден".
var (
	ErrNoJSONFound = errors.New("no JSON object found in model output")
	ErrInvalidJSON = errors.New("invalid JSON in model output")
)

// IsExtractionError сообщает, относится ли ошибка к сбоям извлечения.
func IsExtractionError(err error) bool {
	return errors.Is(err, ErrNoJSONFound) || errors.Is(err, ErrInvalidJSON)
}

// reasoningRe удаляет reasoning-аннотации вида <think>...</think>.
// Нежадный матч, поддерживает несколько вхождений; непарные маркеры
// остаются в тексте как есть.
var reasoningRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Extract извлекает нарративный payload из сырого ответа модели.
//
// Алгоритм: удалить reasoning-аннотации, взять подстроку от первой '{'
// до последней '}', распарсить как JSON и классифицировать по полю
// status. Захват от первой до последней скобки — сознательное
// упрощение: он ломается, если после JSON объекта в прозе встречается
// '}'. Это задокументированный контракт, а не баг для молчаливого
// исправления.
func Extract(raw string) (*model.NarrativePayload, error) {
	cleaned := reasoningRe.ReplaceAllString(raw, "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w (response length %d)", ErrNoJSONFound, len(raw))
	}

	candidate := cleaned[start : end+1]

	var payload model.NarrativePayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	// Классификация: статус gameover/gameclear дает terminal payload,
	// все остальное трактуется как continuation.
	if !payload.IsTerminal() {
		payload.Status = model.StatusContinuing
		if payload.Choices == nil {
			payload.Choices = []model.Choice{}
		}
	}

	return &payload, nil
}
