package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/rawsence/procheck/internal/ai"
	"github.com/rawsence/procheck/internal/config"
	"github.com/rawsence/procheck/internal/embedcache"
	"github.com/rawsence/procheck/internal/filestore"
	"github.com/rawsence/procheck/internal/handler"
	"github.com/rawsence/procheck/internal/job"
	"github.com/rawsence/procheck/internal/middleware"
	"github.com/rawsence/procheck/internal/pkg/jwt"
	"github.com/rawsence/procheck/internal/preview"
	"github.com/rawsence/procheck/internal/protocol"
	"github.com/rawsence/procheck/internal/repo"
	"github.com/rawsence/procheck/internal/schedule"
	"github.com/rawsence/procheck/internal/searchindex"
	"github.com/rawsence/procheck/internal/service"
	"github.com/rawsence/procheck/internal/session"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "procheck",
		Short: "procheck backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run procheck server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db, cfg.Migrations); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	var tokenUserID string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "issue an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if tokenUserID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			token, err := jwt.GenerateToken(tokenUserID, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id to embed in the token")

	rootCmd.AddCommand(runCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	var indexer searchindex.Indexer = searchindex.Noop{}
	if cfg.Index.DSN != "" {
		embedder := ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel)
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Index.EmbedCacheSize,
			time.Hour*time.Duration(cfg.Index.EmbedCacheTTL))
		pgIndexer, err := searchindex.NewPostgresIndexer(cfg.Index.DSN, embedder)
		if err != nil {
			return fmt.Errorf("init search index: %w", err)
		}
		indexer = pgIndexer
	}

	registry := session.NewRegistry()
	previews := preview.NewStore(store)
	jobRepo := repo.NewUploadJobRepo(db)
	generator := protocol.NewGenerator(ai.NewGenerator(aiProvider, cfg.AI.Model), cfg.Upload.MaxChunks, cfg.Upload.MaxRetries)
	uploadService := service.NewUploadService(cfg.Upload, cfg.StagingDir, registry, previews, jobRepo, generator, indexer)

	scheduler := schedule.NewScheduler()
	cleanup := job.NewPreviewCleanupJob(previews, jobRepo, registry, time.Hour*time.Duration(cfg.PreviewTTL))
	if err := scheduler.AddJob(cleanup, cfg.CleanupSpec); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}

	deps := handler.RouterDeps{
		Uploads:   handler.NewUploadHandler(uploadService, cfg.Upload.MaxUploadBytes),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllow),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
