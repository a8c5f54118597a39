package server

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"task-manager-api/internal/auth"
	"task-manager-api/internal/config"
	"task-manager-api/internal/engine"
	"task-manager-api/internal/instrument"
	"task-manager-api/internal/metadata"
	"task-manager-api/internal/public"
	"task-manager-api/internal/ratelimit"
	"task-manager-api/internal/store"
)

// Server holds the Fiber app and every resource built for it.
type Server struct {
	App      *fiber.App
	Store    *store.Store
	Registry *metadata.Registry
	Schema   *metadata.Schema
	Metrics  *instrument.Metrics

	ResourceHandler *engine.Handler
	AuthHandler     *auth.Handler
	PublicHandler   *public.Handler

	redis *redis.Client
}

// Options override collaborators, mainly in tests.
type Options struct {
	Mailer auth.Mailer // nil logs verification links
}

// New loads the schema snapshot, builds the handlers and registers every
// route. Static routes go before the generic /:model routes.
func New(ctx context.Context, cfg *config.Config, s *store.Store, logger *zap.Logger, opts Options) (*Server, error) {
	reg := metadata.DefaultRegistry()
	schema, err := metadata.LoadSchema(ctx, s, reg.Tables()...)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	srv := &Server{
		Store:    s,
		Registry: reg,
		Schema:   schema,
		Metrics:  instrument.NewMetrics(),
	}

	var storage fiber.Storage
	if cfg.RateLimit.RedisAddr != "" {
		srv.redis = redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		rs, err := ratelimit.NewRedisStorage(ratelimit.RedisStorageConfig{Client: srv.redis, Prefix: "limiter:"})
		if err != nil {
			return nil, err
		}
		storage = rs
	}

	mailer := opts.Mailer
	if mailer == nil {
		mailer = auth.NewLogMailer(logger)
	}

	tokens := auth.NewTokens(s, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	srv.AuthHandler = auth.NewHandler(s, tokens, auth.NewSigner(cfg.App.Key, cfg.App.URL), mailer,
		engine.NewLoader(s, reg, schema), auth.Options{
			Prefix:    cfg.Server.Prefix,
			VerifyTTL: cfg.Auth.VerifyTTL,
			Logger:    logger,
		})
	srv.ResourceHandler = engine.NewHandler(s, reg, schema, engine.Options{
		DefaultPerPage: cfg.Pagination.DefaultPerPage,
		HashPassword:   auth.HashPassword,
		Logger:         logger,
	})
	srv.PublicHandler = public.NewHandler(cfg.App)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: engine.ErrorHandler(logger),
	})
	app.Use(srv.Metrics.Middleware(logger))
	app.Use(recover.New())

	app.Get("/health", srv.PublicHandler.Health)
	app.Get("/metrics", srv.Metrics.Handler())

	api := app.Group(cfg.Server.Prefix)
	public.RegisterPublicRoutes(api, srv.PublicHandler)

	authn := auth.Middleware(tokens)
	throttle := ratelimit.New(ratelimit.Config{
		Max:     cfg.RateLimit.VerifyMax,
		Window:  cfg.RateLimit.VerifyWindow,
		Storage: storage,
	})
	auth.RegisterAuthRoutes(api, srv.AuthHandler, authn, throttle)
	engine.RegisterResourceRoutes(api, srv.ResourceHandler, authn, auth.Verified())

	srv.App = app
	return srv, nil
}

// Close releases the resources New opened. The store is owned by the caller.
func (s *Server) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
