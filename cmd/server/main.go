package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"afyacare.app/client/internal/api"
	"afyacare.app/client/internal/auth"
	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/config"
	"afyacare.app/client/internal/core"
	"afyacare.app/client/internal/store"
)

func main() {
	logoutFlag := flag.Bool("logout", false, "Clear the stored sessions and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx := context.Background()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open token store", "backend", cfg.TokenStore, "error", err)
		os.Exit(1)
	}
	defer kv.Close()
	mobileKV := kv.Scoped(store.NamespaceMobile)
	webKV := kv.Scoped(store.NamespaceWeb)

	// Mobile backend: session, authenticated transport and screen services
	mobileClient := backend.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, logger.With("backend", "mobile"))
	session := auth.NewSessionManager(mobileClient, mobileKV, auth.MobileEndpoints, cfg.TokenExpiryLeeway, logger)
	transport := auth.NewTransport(mobileClient, session, logger)

	// Web catalog backend with its own admin session
	webClient := backend.NewClient(cfg.CatalogBaseURL, cfg.HTTPTimeout, logger.With("backend", "catalog"))
	adminSession := auth.NewSessionManager(webClient, webKV, auth.WebEndpoints, cfg.TokenExpiryLeeway, logger)
	adminTransport := auth.NewTransport(webClient, adminSession, logger)

	if *logoutFlag {
		session.Logout(ctx)
		adminSession.Logout(ctx)
		logger.Info("Stored sessions cleared. Exiting.")
		return
	}

	if u, err := session.LoadUser(ctx); err != nil {
		logger.Warn("Failed to restore user", "error", err)
	} else if u != nil {
		logger.Info("Restored session", "email", u.Email, "role", u.Role)
	}
	if _, err := adminSession.LoadUser(ctx); err != nil {
		logger.Warn("Failed to restore admin user", "error", err)
	}

	chatService := core.NewChatService(mobileClient, transport, mobileKV, logger)
	if err := chatService.Bootstrap(ctx); err != nil {
		logger.Error("Failed to bootstrap chat", "error", err)
		os.Exit(1)
	}

	catalog := core.NewCatalogService(webClient, adminTransport, logger)
	apiHandler := api.NewAPIHandler(api.Services{
		Session:      session,
		Chat:         chatService,
		Appointments: core.NewAppointmentService(transport, logger),
		Availability: core.NewAvailabilityService(transport, logger),
		Reports:      core.NewReportService(transport, cfg.ReportsTimeout),
		Profile:      core.NewProfileService(transport, mobileKV, logger),
		Catalog:      catalog,
		Cart:         core.NewCartService(catalog, webKV, logger),
	}, logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // covers the backend timeout plus one refresh and retry
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting gateway", "addr", serverAddr, "api", cfg.APIBaseURL, "catalog", cfg.CatalogBaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Could not listen", "addr", serverAddr, "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway forced to shutdown", "error", err)
	}
	logger.Info("Gateway exited gracefully")
}

// openStore picks the persistence backend named by TOKEN_STORE.
func openStore(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.TokenStore {
	case "redis":
		return store.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
	default:
		return store.NewSQLiteStore(cfg.DatabaseURL)
	}
}
