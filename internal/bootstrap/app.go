package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "resumegen-backend/internal/auth"
	"resumegen-backend/internal/cleanup"
	"resumegen-backend/internal/exports"
	"resumegen-backend/internal/exports/files"
	"resumegen-backend/internal/exports/render"
	"resumegen-backend/internal/llm"
	openai "resumegen-backend/internal/llm/openai"
	"resumegen-backend/internal/resumes"
	"resumegen-backend/internal/shared/config"
	"resumegen-backend/internal/shared/server"
	"resumegen-backend/internal/shared/storage/db"
	"resumegen-backend/internal/users"
)

// App holds the wired application: repositories, services, handlers and the
// router. Cleanup is started by the caller so tests can build an App without
// background goroutines.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Files  *files.Manager

	UsersRepo   users.Repo
	ResumesRepo resumes.Repo
	ExportStore exports.Store

	UsersService   *users.Service
	ResumesService *resumes.Service
	Subscriptions  *exports.SubscriptionService
	ExportService  *exports.Service
	Cleanup        *cleanup.Service

	UsersHandler   *users.Handler
	ResumesHandler *resumes.Handler
	ExportsHandler *exports.Handler
	GoogleAuth     *googleauth.GoogleService
}

// Build prepares every dependency and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mgr, err := files.NewManager(cfg.ExportBaseDir, cfg.ExportTempDir)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Files:  mgr,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		GoogleAuth:     app.GoogleAuth,
		UsersHandler:   app.UsersHandler,
		ResumesHandler: app.ResumesHandler,
		ExportsHandler: app.ExportsHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, err
	}
	return sqlDB, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var userRepo users.Repo
	var resumeRepo resumes.Repo
	var exportStore exports.Store

	if app.DB != nil {
		userRepo = &users.PGRepo{DB: app.DB}
		resumeRepo = &resumes.PGRepo{DB: app.DB}
		exportStore = &exports.PGStore{DB: app.DB}
	} else {
		userRepo = users.NewMemoryRepo()
		resumeRepo = resumes.NewMemoryRepo()
		exportStore = exports.NewMemoryStore()
	}

	llmClient := llm.Client(llm.PlaceholderClient{})
	if app.Config.LLMProvider == "openai" {
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			openaiClient, err := openai.NewClient(apiKey, app.Config.LLMModel)
			if err != nil {
				return err
			}
			llmClient = openaiClient
		} else {
			log.Printf("bootstrap: OPENAI_API_KEY empty; AI generation disabled")
		}
	}

	userSvc := users.NewService(userRepo)
	resumeSvc := &resumes.Service{Repo: resumeRepo, LLM: llmClient}

	subs := &exports.SubscriptionService{
		Users: userSvc,
		Store: exportStore,
		Cfg:   app.Config.Export,
	}
	exportSvc := &exports.Service{
		Store:   exportStore,
		Resumes: resumeRepo,
		Subs:    subs,
		Files:   app.Files,
		Cfg:     app.Config.Export,
		Renderers: map[string]render.Renderer{
			exports.FormatPDF:  render.NewPDFRenderer(),
			exports.FormatDOCX: render.NewDOCXRenderer(),
		},
	}
	cleanupSvc := cleanup.NewService(exportStore, app.Files, app.Config.Export)

	app.UsersRepo = userRepo
	app.ResumesRepo = resumeRepo
	app.ExportStore = exportStore
	app.UsersService = userSvc
	app.ResumesService = resumeSvc
	app.Subscriptions = subs
	app.ExportService = exportSvc
	app.Cleanup = cleanupSvc
	app.UsersHandler = users.NewHandler(userSvc)
	app.ResumesHandler = resumes.NewHandler(resumeSvc)
	app.ExportsHandler = exports.NewHandler(exportSvc, userSvc, cleanupSvc)
	app.ExportsHandler.Purger = cleanupSvc
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)
	return nil
}
