package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/engine"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/service"
)

// Handler представляет HTTP обработчик игровых сессий
type Handler struct {
	gameService *service.GameService
}

// New создает новый экземпляр обработчика
func New(gameService *service.GameService) *Handler {
	return &Handler{
		gameService: gameService,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *Handler) RegisterRoutes(router *mux.Router) {
	// Маршруты для работы с сессиями (относительно /api)
	router.HandleFunc("/sessions", h.StartSession).Methods("POST")
	router.HandleFunc("/sessions/{id}/choice", h.MakeChoice).Methods("POST")
	router.HandleFunc("/sessions/{id}/state", h.GetState).Methods("GET")
	router.HandleFunc("/sessions/{id}/resume", h.ResumeSession).Methods("POST")
	router.HandleFunc("/sessions/{id}", h.DropSession).Methods("DELETE")

	// Маршрут для списка доступных моделей
	router.HandleFunc("/models", h.ListModels).Methods("GET")
}

// sessionResponse дополняет результат хода идентификатором сессии
type sessionResponse struct {
	SessionID string `json:"session_id"`
	*engine.TurnResult
}

// choiceRequest описывает тело запроса выбора действия
type choiceRequest struct {
	ChoiceID string `json:"choice_id"`
}

// StartSession создает новую сессию и возвращает открывающую сцену
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	id, result, err := h.gameService.StartSession(r.Context())
	if err != nil {
		// Нет предыдущего состояния для отката — ошибка фатальна для запроса
		log.Error().Err(err).Msg("Не удалось начать сессию")
		RespondWithError(w, http.StatusBadGateway, fmt.Sprintf("не удалось начать историю: %v", err))
		return
	}

	RespondWithJSON(w, http.StatusCreated, sessionResponse{
		SessionID:  id.String(),
		TurnResult: result,
	})
}

// MakeChoice выполняет ход в рамках сессии
func (h *Handler) MakeChoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("неверный формат запроса: %v", err))
		return
	}
	if req.ChoiceID == "" {
		RespondWithError(w, http.StatusBadRequest, "choice_id обязателен")
		return
	}

	result, err := h.gameService.MakeChoice(r.Context(), id, req.ChoiceID)
	if err != nil {
		h.respondServiceError(w, err, "ошибка при выполнении хода")
		return
	}

	// Неудачный ход уже откатан движком: возвращаем прежнюю сцену
	// с сообщением об ошибке и статусом 200
	RespondWithJSON(w, http.StatusOK, sessionResponse{
		SessionID:  id.String(),
		TurnResult: result,
	})
}

// GetState возвращает полное состояние сессии
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	state, err := h.gameService.GetState(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "ошибка при получении состояния")
		return
	}

	RespondWithJSON(w, http.StatusOK, state)
}

// ResumeSession восстанавливает сессию из сохраненного состояния
func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	result, err := h.gameService.ResumeSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNoSaveData) {
			RespondWithError(w, http.StatusNotFound, "сохранение не найдено")
			return
		}
		h.respondServiceError(w, err, "ошибка при восстановлении сессии")
		return
	}

	RespondWithJSON(w, http.StatusOK, sessionResponse{
		SessionID:  id.String(),
		TurnResult: result,
	})
}

// DropSession завершает сессию, сохраненные данные остаются
func (h *Handler) DropSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := h.gameService.DropSession(r.Context(), id); err != nil {
		h.respondServiceError(w, err, "ошибка при завершении сессии")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "dropped"})
}

// ListModels возвращает список моделей, доступных у бэкенда
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.gameService.ListModels(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, fmt.Sprintf("не удалось получить список моделей: %v", err))
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string][]string{"models": models})
}

// sessionID извлекает и проверяет идентификатор сессии из пути
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := uuid.Parse(idStr)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("неверный формат ID сессии: %v", err))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error, prefix string) {
	if errors.Is(err, service.ErrSessionNotFound) {
		RespondWithError(w, http.StatusNotFound, "сессия не найдена")
		return
	}
	log.Error().Err(err).Msg(prefix)
	RespondWithError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", prefix, err))
}

// RespondWithError отправляет ответ с ошибкой в формате JSON
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// RespondWithJSON отправляет ответ в формате JSON
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
