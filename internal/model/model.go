package model

// Role идентифицирует автора реплики в контексте модели.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn представляет одну реплику в диалоге с моделью.
// Порядок реплик семантически значим.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GameStatus представляет статус игровой сессии.
type GameStatus string

const (
	StatusContinuing GameStatus = "continuing"
	StatusGameOver   GameStatus = "gameover"
	StatusGameClear  GameStatus = "gameclear"
)

// IsTerminal сообщает, завершает ли статус сессию.
func (s GameStatus) IsTerminal() bool {
	return s == StatusGameOver || s == StatusGameClear
}

// Known сообщает, является ли статус одним из трех известных тегов.
func (s GameStatus) Known() bool {
	return s == StatusContinuing || s == StatusGameOver || s == StatusGameClear
}

// RestartChoiceID зарезервирован: выбор с этим id всегда означает
// "начать новую сессию" и перехватывается до обращения к модели.
const RestartChoiceID = "restart"

// Choice представляет один вариант действия игрока.
// Варианты эфемерны: каждый ход список пересоздается целиком.
type Choice struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GameState — полное состояние одной игровой сессии.
// History чередует текст выбранного действия и текст сцены, начиная
// со сцены открытия (индекс 0 — сцена без предшествующего действия).
type GameState struct {
	Story       string     `json:"story"`
	History     []string   `json:"history"`
	CurrentStep int        `json:"currentStep"`
	Status      GameStatus `json:"status"`
	ResultText  string     `json:"resultText,omitempty"`
	Choices     []Choice   `json:"choices"`
}

// NewGameState возвращает состояние свежей сессии.
func NewGameState() *GameState {
	return &GameState{
		Story:   "",
		History: []string{},
		Status:  StatusContinuing,
		Choices: []Choice{},
	}
}

// Clone возвращает глубокую копию состояния. Вызывающий не может
// изменить внутреннее состояние движка через копию.
func (s *GameState) Clone() *GameState {
	cp := *s
	cp.History = make([]string, len(s.History))
	copy(cp.History, s.History)
	cp.Choices = make([]Choice, len(s.Choices))
	copy(cp.Choices, s.Choices)
	return &cp
}

// NarrativePayload — структурированный нарративный ответ модели.
// Continuation-форма несет story + choices, terminal-форма несет
// story + description и status gameover/gameclear.
type NarrativePayload struct {
	Status      GameStatus `json:"status"`
	Story       string     `json:"story"`
	Choices     []Choice   `json:"choices"`
	Description string     `json:"description"`
}

// IsTerminal сообщает, завершает ли payload сессию.
func (p *NarrativePayload) IsTerminal() bool {
	return p.Status.IsTerminal()
}
