package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"polisense-backend/internal/documents"
	"polisense-backend/internal/queries"
	"polisense-backend/internal/rag"
	"polisense-backend/internal/services/health"
	"polisense-backend/internal/shared/config"
	"polisense-backend/internal/shared/server"
	"polisense-backend/internal/shared/storage/db"
	"polisense-backend/internal/shared/storage/object"
	localstore "polisense-backend/internal/shared/storage/object/local"
	s3store "polisense-backend/internal/shared/storage/object/s3"
	"polisense-backend/internal/shared/telemetry"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	RAG              *rag.Client
	DocumentsRepo    documents.Repo
	DocumentsService *documents.Service
	QueryService     *queries.Service
	DocumentsHandler *documents.Handler
	QueryHandler     *queries.Handler
	Health           *health.Service
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		RAG:    rag.NewClient(cfg.RAGBaseURL, cfg.RAGBearerToken, cfg.RAGTimeout),
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		DocumentHandler: app.DocumentsHandler,
		QueryHandler:    app.QueryHandler,
		Health:          app.Health,
	})
	return app, nil
}

// Close releases the database pool, if any.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		if err = db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		}
	}
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repo", map[string]any{"reason": "database unavailable", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildServices(app *App) {
	var docRepo documents.Repo
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
	}

	docSvc := &documents.Service{
		Store:           app.Store,
		Repo:            docRepo,
		Index:           ragIndexAdapter{client: app.RAG},
		StorageProvider: app.Config.ObjectStoreType,
	}
	querySvc := &queries.Service{RAG: app.RAG}

	app.DocumentsRepo = docRepo
	app.DocumentsService = docSvc
	app.QueryService = querySvc
	app.DocumentsHandler = documents.NewHandler(docSvc, app.Config.MaxUploadBytes)
	app.QueryHandler = queries.NewHandler(querySvc)
	if app.DB != nil {
		app.Health = health.NewService(app.DB, app.RAG)
	} else {
		app.Health = health.NewService(nil, app.RAG)
	}
}

// ragIndexAdapter maps the ingestion pipeline's view of the index onto the rag client.
type ragIndexAdapter struct {
	client *rag.Client
}

func (a ragIndexAdapter) AddDocument(ctx context.Context, doc documents.IndexedDocument) error {
	return a.client.AddDocument(ctx, rag.AddDocumentRequest{
		DocumentID:   doc.DocumentID,
		Content:      doc.Content,
		Filename:     doc.FileName,
		UserID:       doc.OwnerID,
		DocumentType: doc.DocumentType,
	})
}

func (a ragIndexAdapter) ClearUserDocuments(ctx context.Context, ownerID string) error {
	return a.client.ClearUserDocuments(ctx, ownerID)
}

func (a ragIndexAdapter) ClearAllDocuments(ctx context.Context) error {
	return a.client.ClearAllDocuments(ctx)
}
