package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/intelogroup/searchmatic/db"
	"github.com/intelogroup/searchmatic/handlers"
	"github.com/intelogroup/searchmatic/internal/auth"
	"github.com/intelogroup/searchmatic/internal/utils"
	"github.com/intelogroup/searchmatic/migrations"
	"github.com/intelogroup/searchmatic/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging)
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		sugar.Fatalw("postgres connect failed", "error", err)
	}
	defer postgres.Close()

	if err := postgres.Ping(ctx); err != nil {
		sugar.Fatalw("postgres ping failed", "error", err)
	}

	runner, err := migrations.NewRunner(postgres.Pool, sugar.Named("migrations"), migrations.All())
	if err != nil {
		sugar.Fatalw("migration runner init failed", "error", err)
	}
	summary, err := runner.Run(ctx)
	if err != nil {
		sugar.Fatalw("migrations failed", "failed", summary.Failed, "applied", summary.Applied, "error", err)
	}
	sugar.Infow("migrations up to date", "applied", summary.Applied, "skipped", len(summary.Skipped))

	mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		sugar.Fatalw("mongo connect failed", "error", err)
	}
	defer func() {
		if err := mongoStore.Close(context.Background()); err != nil {
			sugar.Warnw("mongo close failed", "error", err)
		}
	}()

	if err := mongoStore.EnsureCollections(ctx); err != nil {
		sugar.Fatalw("mongo ensure collections failed", "error", err)
	}

	profiles := db.NewProfileRepository(postgres.Pool)
	projects := db.NewProjectRepository(postgres.Pool)
	conversations := db.NewConversationRepository(postgres.Pool)
	studies := db.NewStudyRepository(postgres.Pool)
	protocols := db.NewProtocolRepository(postgres.Pool)
	exports := db.NewExportRepository(postgres.Pool)

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTTTL, profiles)
	if err != nil {
		sugar.Fatalw("auth service init failed", "error", err)
	}

	completer := services.NewCompletionService(cfg.Completion, sugar.Named("completion"))
	chatService := services.NewChatService(conversations, completer, sugar.Named("chat"))
	analysisService := services.NewAnalysisService(completer, studies, protocols, sugar.Named("analysis"))
	exportService := services.NewExportService(conversations, studies, exports, sugar.Named("export"))
	importService := services.NewImportService(mongoStore, studies, sugar.Named("import"))

	handler := handlers.NewHandler(
		authService,
		chatService,
		analysisService,
		exportService,
		importService,
		projects,
		protocols,
		studies,
		sugar.Named("http"),
	)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming responses have no fixed deadline
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infow("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server crashed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("graceful shutdown failed", "error", err)
	}

	sugar.Info("server stopped cleanly")
}
