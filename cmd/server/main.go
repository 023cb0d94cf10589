package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sssaikyosan/AI-Horror-Adv/internal/ai"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/config"
	delivery "github.com/sssaikyosan/AI-Horror-Adv/internal/delivery/http"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/effects"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/service"
	"github.com/sssaikyosan/AI-Horror-Adv/internal/session"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		// Логируем как предупреждение, т.к. в production .env может не использоваться
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	// Инициализация логгера
	initLogger()

	// Парсинг флагов командной строки
	env := flag.String("env", "development", "Environment: development, production")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.Load(*env)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Инициализация AI клиента
	aiClient, err := ai.New(ai.Config{
		Backend:     cfg.AI.Backend,
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Stream:      cfg.AI.Stream,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize AI client")
	}

	// Инициализация хранилища сессий
	newStore, err := initStoreFactory(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session store")
	}

	// Инициализация голосового сервиса
	speech := initSpeech(cfg.Voice)

	// Инициализация игрового сервиса
	gameService := service.NewGameService(aiClient, newStore, speech, cfg.Voice.VoiceID, log.Logger)

	// Инициализация HTTP обработчиков
	handlers := delivery.New(gameService)

	// Настройка маршрутов
	router := mux.NewRouter()

	// Служебные маршруты вне базового префикса API
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		delivery.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Создаем подмаршрутизатор для API
	apiRouter := router.PathPrefix(cfg.Server.BasePath).Subrouter()
	apiRouter.Use(loggingMiddleware)
	handlers.RegisterRoutes(apiRouter)

	// Настройка CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Создание HTTP сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	// Запуск сервера в горутине
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Настройка плавного завершения
	gracefulShutdown(server)
}

// initLogger настраивает глобальный логгер
func initLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Caller().Logger()

	// В режиме разработки используем более читаемый вывод
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
	}

	// Настройка уровня логирования
	logLevel := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logLevel = lvl
	}
	zerolog.SetGlobalLevel(logLevel)
}

// initStoreFactory выбирает бэкенд хранилища сессий
func initStoreFactory(cfg config.Config) (service.StoreFactory, error) {
	switch cfg.Session.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		// Проверка соединения
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
		return func(id uuid.UUID) session.Store {
			key := fmt.Sprintf("horror_adv:session:%s", id)
			return session.NewRedisStore(client, key, ttl, log.Logger)
		}, nil
	default:
		return func(id uuid.UUID) session.Store {
			path := filepath.Join(cfg.Session.Dir, id.String()+".json")
			return session.NewFileStore(path, log.Logger)
		}, nil
	}
}

// initSpeech подключает голосовой сервер, если он сконфигурирован
func initSpeech(cfg config.VoiceConfig) effects.Speech {
	if cfg.BaseURL == "" {
		log.Info().Msg("voice synthesis disabled")
		return effects.NopSpeech{}
	}
	log.Info().Str("baseURL", cfg.BaseURL).Msg("voice synthesis enabled")
	return effects.NewVoiceClient(cfg.BaseURL, time.Duration(cfg.Timeout)*time.Second, log.Logger)
}

// loggingMiddleware внедряет настроенный логгер в контекст запроса
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxWithLogger := log.Logger.WithContext(r.Context())
		next.ServeHTTP(w, r.WithContext(ctxWithLogger))
	})
}

// gracefulShutdown обеспечивает плавное завершение работы сервера
func gracefulShutdown(server *http.Server) {
	// Ожидание сигнала остановки
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down server...")

	// Создаем контекст с таймаутом для завершения
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Остановка HTTP сервера
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("server stopped gracefully")
}
