package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/loopfeed/loopfeed/internal/cache"
	"github.com/loopfeed/loopfeed/internal/config"
	"github.com/loopfeed/loopfeed/internal/db"
	"github.com/loopfeed/loopfeed/internal/draft"
	"github.com/loopfeed/loopfeed/internal/markdown"
	"github.com/loopfeed/loopfeed/internal/repository"
	"github.com/loopfeed/loopfeed/internal/service"
	"github.com/loopfeed/loopfeed/internal/storage"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Cfg             *config.Config
	DB              *sqlx.DB
	Redis           *redis.Client
	Store           *repository.Store
	Staging         *draft.Staging
	Drafts          *draft.Registry
	AuthService     *service.AuthService
	UserService     *service.UserService
	EmailService    *service.EmailService
	MetadataService *service.MetadataService
	CardEditor      *service.CardEditor
	PublishService  *service.PublishService
	LoopService     *service.LoopService
	FolderService   *service.FolderService
	WhisperService  *service.WhisperService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Storage
	objects, err := storage.New(ctx, cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a, err := Assemble(cfg, database, objects)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	// Metadata cache (optional)
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("metadata cache disabled", "error", err)
		} else {
			a.Redis = client
			a.useMetadataCache(cache.NewMetadataCache(client, cfg.MetadataCacheTTL))
		}
	}

	return a, nil
}

// Assemble wires the services around an opened database and object store.
func Assemble(cfg *config.Config, database *sqlx.DB, objects storage.Storage) (*App, error) {
	staging, err := draft.NewStaging(cfg.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize staging: %w", err)
	}

	store := repository.NewStore(database)

	a := &App{
		Cfg:     cfg,
		DB:      database,
		Store:   store,
		Staging: staging,
		Drafts:  draft.NewRegistry(cfg.DraftSessionTTL, staging),
	}

	a.EmailService = service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	a.AuthService = service.NewAuthService(store, store.Users, cfg.JWTSecret, cfg.IsProduction(), cfg.JWTExpiry)
	a.UserService = service.NewUserService(store.Users, store.Profiles)
	a.useMetadataCache(nil)
	a.PublishService = service.NewPublishService(store.Repos, store, objects, staging, a.EmailService, cfg.PublishMaxSize)
	a.LoopService = service.NewLoopService(store.Repos, store, objects, markdown.NewParser(), cfg.SignedURLExpiry)
	a.FolderService = service.NewFolderService(store.Repos, a.LoopService)
	a.WhisperService = service.NewWhisperService(store.Repos, a.EmailService)

	return a, nil
}

// useMetadataCache rebuilds the metadata fetcher and the card editor that
// depends on it.
func (a *App) useMetadataCache(c *cache.MetadataCache) {
	var mc service.MetadataCache
	if c != nil {
		mc = c
	}

	linkPreviewKey := ""
	if a.Cfg.MetadataFallbackEnabled() {
		linkPreviewKey = a.Cfg.LinkPreviewAPIKey
	}

	a.MetadataService = service.NewMetadataService(a.Cfg.MetadataTimeout, mc, a.Cfg.AllowedRefererDomain, linkPreviewKey)
	a.CardEditor = service.NewCardEditor(a.Staging, a.MetadataService, a.Cfg.UploadMaxSize)
}

func (a *App) Close() error {
	if a.Drafts != nil {
		a.Drafts.Close()
	}
	if a.Redis != nil {
		err := a.Redis.Close()
		if err != nil {
			slog.Error("failed to close redis", "error", err)
		}
	}
	return db.Close(a.DB)
}
