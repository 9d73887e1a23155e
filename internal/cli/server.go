package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"livequiz-service/internal/app"
	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
	pgstore "livequiz-service/internal/infra/postgres"
	redisstore "livequiz-service/internal/infra/redis"
	"livequiz-service/internal/logger"
	transport "livequiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	log := logger.New()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Session.TTL, time.Hour)
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestionSets())
	if pool != nil {
		loader = pgstore.NewQuestionLoader(pool)
	}

	var questions app.QuestionStore
	if redisClient != nil {
		questions = redisstore.NewQuestionStore(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionStore(loader, questionTTL)
	}

	var state app.StateStore
	if redisClient != nil {
		state = redisstore.NewStateStore(redisClient, sessionTTL)
	} else {
		state = memory.NewStateStore(sessionTTL)
	}

	var records app.SessionRecords
	var responses app.ResponseStore
	if pool != nil {
		records = pgstore.NewSessionRecords(pool)
		responses = pgstore.NewResponseStore(pool)
	} else {
		records = memory.NewSessionRecords()
		responses = memory.NewResponseStore()
	}

	lifecycle := app.NewLifecycle(records, state)
	broker := app.NewBroker(lifecycle, state, questions, responses, log)
	wsHandler := transport.NewWSHandler(broker, log)
	sessionHandler := transport.NewSessionHandler(lifecycle, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	sessionHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Infof("starting live quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionSets provides minimal demo content; the Postgres loader
// replaces this in production.
func sampleQuestionSets() map[string]domain.QuestionSet {
	four := 1
	return map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       "What is 2 + 2?",
					Type:         domain.SingleSelect,
					Options:      []string{"3", "4", "5"},
					TimerSeconds: 15,
					Key:          domain.AnswerKey{Index: &four},
				},
				{
					ID:      "q2",
					Prompt:  "Which of these are prime?",
					Type:    domain.MultiSelect,
					Options: []string{"2", "4", "5", "9"},
					Key:     domain.AnswerKey{Indices: []int{0, 2}},
				},
				{
					ID:     "q3",
					Prompt: "Name the capital of Norway.",
					Type:   domain.ShortText,
					Key:    domain.AnswerKey{Accepted: []string{"Oslo"}},
				},
			},
		},
	}
}
