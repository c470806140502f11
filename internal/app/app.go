package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finsight/internal/common"
	"github.com/ternarybob/finsight/internal/handlers"
	"github.com/ternarybob/finsight/internal/interfaces"
	"github.com/ternarybob/finsight/internal/services/conversation"
	"github.com/ternarybob/finsight/internal/services/entities"
	"github.com/ternarybob/finsight/internal/services/llm"
	"github.com/ternarybob/finsight/internal/services/narrative"
	"github.com/ternarybob/finsight/internal/services/screener"
)

// auditCapacity is the number of narrative requests kept for /api/audit
const auditCapacity = 200

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Stock data pipeline
	EntityIndex    *entities.Index
	ScreenerClient *screener.Client
	StockService   *screener.Service

	// Narrative generation, nil when no provider could be created
	TextProvider     interfaces.TextProvider
	NarrativeService *narrative.Generator
	AuditLogger      *llm.MemoryAuditLogger

	Conversation *conversation.Handler

	// HTTP handlers
	APIHandler   *handlers.APIHandler
	StockHandler *handlers.StockHandler
	WSHandler    *handlers.WebSocketHandler
}

// Option customises App construction
type Option func(*options)

type options struct {
	provider interfaces.TextProvider
}

// WithTextProvider uses provider instead of the one selected by config
func WithTextProvider(provider interfaces.TextProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initServices(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Int("stocks", app.EntityIndex.Len()).
		Bool("narrative_enabled", app.NarrativeService != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initServices builds the pipeline leaves first: entities, fetch client,
// extractor, stock service, narrative generator, conversation handler.
func (a *App) initServices(ctx context.Context, o options) error {
	index, err := entities.Load(a.Config.Entities, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load entity table: %w", err)
	}
	a.EntityIndex = index

	client, err := screener.NewClientFromConfig(a.Config.Screener, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create screener client: %w", err)
	}
	a.ScreenerClient = client

	extractor := screener.NewExtractor(a.Config.Screener.Currency, a.Logger)
	a.StockService = screener.NewService(a.EntityIndex, a.ScreenerClient, extractor, a.Logger)

	a.AuditLogger = llm.NewMemoryAuditLogger(auditCapacity, a.Logger)

	provider := o.provider
	if provider == nil {
		provider, err = llm.NewTextProvider(ctx, a.Config, a.Logger)
		if err != nil {
			// Metrics are still served without a provider
			a.Logger.Warn().Err(err).Msg("Narrative provider unavailable, AI insights disabled")
		}
	}

	if provider != nil {
		a.TextProvider = provider
		a.NarrativeService = narrative.NewGenerator(provider, a.Config.Narrative, a.Logger,
			narrative.WithAuditLogger(a.AuditLogger),
		)
		a.Conversation = conversation.NewHandler(a.StockService, a.NarrativeService, a.EntityIndex, a.Logger)
	} else {
		a.Conversation = conversation.NewHandler(a.StockService, nil, a.EntityIndex, a.Logger)
	}

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.StockHandler = handlers.NewStockHandler(a.Conversation, a.EntityIndex, a.AuditLogger, a.Logger,
		handlers.WithQueryTimeout(a.Config.Server.QueryTimeout),
	)
	a.WSHandler = handlers.NewWebSocketHandler(a.Conversation, a.Logger)
}

// Close releases the narrative provider
func (a *App) Close() error {
	if a.NarrativeService != nil {
		if err := a.NarrativeService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close narrative provider")
			return err
		}
	}
	a.Logger.Info().Msg("Application closed")
	return nil
}
