package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config содержит конфигурацию приложения
type Config struct {
	Environment string
	Server      ServerConfig
	AI          AIConfig
	Session     SessionConfig
	Redis       RedisConfig
	Voice       VoiceConfig
	CORS        CORSConfig
}

// ServerConfig содержит конфигурацию HTTP сервера
type ServerConfig struct {
	Port                int
	BasePath            string
	ReadTimeoutSeconds  int
	WriteTimeoutSeconds int
	IdleTimeoutSeconds  int
}

// AIConfig содержит конфигурацию клиента нейросети
type AIConfig struct {
	// Backend выбирает реализацию клиента: "openai" или "gemini".
	Backend     string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Stream      bool
	Timeout     int
}

// SessionConfig содержит конфигурацию хранилища сессий
type SessionConfig struct {
	// Backend выбирает реализацию хранилища: "file" или "redis".
	Backend string
	// Dir — каталог для file-хранилища, по одному JSON файлу на сессию.
	Dir string
	// TTLHours — время жизни записи в redis (0 = без TTL).
	TTLHours int
}

// RedisConfig содержит конфигурацию подключения к Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// VoiceConfig содержит конфигурацию голосового сервера.
// Пустой BaseURL означает, что синтез речи отключен.
type VoiceConfig struct {
	BaseURL string
	VoiceID string
	Timeout int
}

// CORSConfig содержит конфигурацию CORS
type CORSConfig struct {
	AllowedOrigins []string
}

// Load загружает конфигурацию из переменных окружения
func Load(env string) (Config, error) {
	cfg := Config{
		Environment: env,
		Server: ServerConfig{
			Port:                getEnvInt("SERVER_PORT", 8080),
			BasePath:            getEnvStr("SERVER_BASE_PATH", "/api"),
			ReadTimeoutSeconds:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeoutSeconds: getEnvInt("SERVER_WRITE_TIMEOUT", 300),
			IdleTimeoutSeconds:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		AI: AIConfig{
			Backend:     getEnvStr("AI_BACKEND", "openai"),
			APIKey:      getEnvStr("AI_API_KEY", ""),
			BaseURL:     getEnvStr("AI_BASE_URL", "http://localhost:1234/v1"),
			Model:       getEnvStr("AI_MODEL", "local-model"),
			Temperature: getEnvFloat("AI_TEMPERATURE", 0.8),
			MaxTokens:   getEnvInt("AI_MAX_TOKENS", 4096),
			Stream:      getEnvBool("AI_STREAM", true),
			Timeout:     getEnvInt("AI_TIMEOUT", 300),
		},
		Session: SessionConfig{
			Backend:  getEnvStr("SESSION_BACKEND", "file"),
			Dir:      getEnvStr("SESSION_DIR", "data/sessions"),
			TTLHours: getEnvInt("SESSION_TTL_HOURS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnvStr("REDIS_ADDR", "localhost:6379"),
			Password: getEnvStr("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Voice: VoiceConfig{
			BaseURL: getEnvStr("VOICE_BASE_URL", ""),
			VoiceID: getEnvStr("VOICE_ID", "1"),
			Timeout: getEnvInt("VOICE_TIMEOUT", 30),
		},
		CORS: CORSConfig{
			AllowedOrigins: strings.Split(getEnvStr("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validate проверяет минимальную корректность конфигурации
func (c Config) validate() error {
	switch strings.ToLower(c.AI.Backend) {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown AI backend: %q", c.AI.Backend)
	}

	switch strings.ToLower(c.Session.Backend) {
	case "file", "redis":
	default:
		return fmt.Errorf("unknown session backend: %q", c.Session.Backend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// getEnvStr возвращает строковое значение переменной окружения или значение по умолчанию
func getEnvStr(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat возвращает дробное значение переменной окружения или значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
