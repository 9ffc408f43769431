package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"bookkin/internal/config"
	"bookkin/internal/httpapi"
	"bookkin/internal/httpx"
	"bookkin/internal/library"
	"bookkin/internal/oauth"
	"bookkin/internal/platform/openlibrary"
)

const (
	dbTimeout       = 5 * time.Second
	stateSweepEvery = 10 * time.Minute
	maxBodyBytes    = 1 << 20 // 1 MiB
)

func main() {
	config.LoadEnvFiles()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "bookkin",
	})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	if !cfg.IsProduction() {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool := mustOpenDB(ctx, cfg.DatabaseDSN, logger)
	defer dbPool.Close()

	// Storage
	canonicalRepo := library.NewCanonicalPostgresRepo(dbPool, dbTimeout)
	membershipRepo := library.NewMembershipPostgresRepo(dbPool, dbTimeout)
	stateStore := oauth.NewPostgresStateStore(dbPool, dbTimeout)
	sessionStore := oauth.NewPostgresSessionStore(dbPool, dbTimeout)

	// External catalog
	olClient := openlibrary.NewClient(cfg.OpenLibraryUserAgent, 3)

	// OAuth client: constructed once, shared by reference.
	oauthClient := oauth.NewClient(oauth.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		ClientName:   "Book Kin",
		ClientURI:    cfg.OAuthClientURI,
		AuthURL:      cfg.OAuthAuthURL,
		TokenURL:     cfg.OAuthTokenURL,
		RedirectURL:  cfg.OAuthRedirectURL,
		ProfileURL:   cfg.ProfileURL,
		Scopes:       []string{"atproto"},
	}, stateStore, sessionStore, logger.WithPrefix("oauth"))

	// Services and handlers
	libraryService := library.NewService(canonicalRepo, membershipRepo, olClient, logger.WithPrefix("library"))
	bookHandler := httpapi.NewBookHandler(libraryService, logger.WithPrefix("api"))
	oauthHandler := httpapi.NewOAuthHandler(oauthClient, cfg.JWTSecret, cfg.AppDeepLink, logger.WithPrefix("oauth"))

	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := dbPool.Ping(pingCtx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.HandleFunc("GET /client-metadata.json", oauthHandler.ClientMetadata)
	router.HandleFunc("GET /oauth/login", oauthHandler.Login)
	router.HandleFunc("GET /oauth/callback", oauthHandler.Callback)

	requireAuth := httpx.AuthMiddleware(cfg.JWTSecret, logger.WithPrefix("auth"))
	router.Handle("POST /oauth/logout", requireAuth(http.HandlerFunc(oauthHandler.Logout)))
	router.Handle("POST /api/books", requireAuth(http.HandlerFunc(bookHandler.AddBook)))
	router.Handle("GET /api/my-library", requireAuth(http.HandlerFunc(bookHandler.MyLibrary)))
	router.Handle("DELETE /api/books/{id}", requireAuth(http.HandlerFunc(bookHandler.DeleteBook)))

	rateLimit := httpx.NewRateLimitMiddleware(10, 20)
	handler := httpx.RequestIDMiddleware(
		httpx.AccessLogMiddleware(logger.WithPrefix("http"))(
			httpx.RecoveryMiddleware(logger.WithPrefix("http"))(
				httpx.CORSMiddleware(cfg.AllowedOrigins)(
					httpx.SecurityHeadersMiddleware(cfg.IsProduction())(
						httpx.RequestSizeLimitMiddleware(maxBodyBytes)(
							rateLimit.Middleware(router),
						),
					),
				),
			),
		),
	)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "addr", cfg.Addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Periodic sweep of expired login states.
	g.Go(func() error {
		ticker := time.NewTicker(stateSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n, err := stateStore.DeleteExpired(gctx); err != nil {
					logger.Warn("oauth state sweep failed", "err", err)
				} else if n > 0 {
					logger.Debug("swept expired oauth states", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", "err", err)
	}
}

func mustOpenDB(ctx context.Context, dsn string, logger *log.Logger) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal("cannot create db pool", "err", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		logger.Fatal("cannot ping database", "dsn", redactDSN(dsn), "err", err)
	}
	logger.Info("database connection OK")
	return pool
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
