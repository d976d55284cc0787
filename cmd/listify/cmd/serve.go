package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dmaier/listify/internal/api/handlers"
	"github.com/dmaier/listify/internal/api/middleware"
	"github.com/dmaier/listify/internal/blob"
	"github.com/dmaier/listify/internal/config"
	"github.com/dmaier/listify/internal/ebay"
	"github.com/dmaier/listify/internal/engine"
	"github.com/dmaier/listify/internal/etsy"
	"github.com/dmaier/listify/internal/notify"
	"github.com/dmaier/listify/internal/oauth"
	"github.com/dmaier/listify/internal/publisher"
	"github.com/dmaier/listify/internal/store"
	"github.com/dmaier/listify/pkg/logger"
	domain "github.com/dmaier/listify/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and scheduler",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.NewPostgresStore(connectCtx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer st.Close()

	blobs, err := blob.NewDirStore(cfg.Uploads.Dir, cfg.Uploads.BasePath)
	if err != nil {
		return fmt.Errorf("preparing upload directory: %w", err)
	}

	manager := oauth.NewManager(map[domain.Provider]oauth.ClientConfig{
		domain.ProviderEtsy: {
			ClientID:     cfg.Etsy.ClientID,
			ClientSecret: cfg.Etsy.ClientSecret,
			RedirectURI:  cfg.Etsy.RedirectURI,
			AuthURL:      cfg.Etsy.AuthURL,
			TokenURL:     cfg.Etsy.TokenURL,
			Scopes:       cfg.Etsy.Scopes,
			APIBaseURL:   cfg.Etsy.APIBaseURL,
		},
		domain.ProviderEbay: {
			ClientID:     cfg.Ebay.ClientID,
			ClientSecret: cfg.Ebay.ClientSecret,
			RedirectURI:  cfg.Ebay.RedirectURI,
			AuthURL:      cfg.Ebay.AuthURL,
			TokenURL:     cfg.Ebay.TokenURL,
			Scopes:       cfg.Ebay.Scopes,
		},
	}, log)

	limiter := ebay.NewRateLimiter(
		cfg.Ebay.RateLimit.PerSecond,
		cfg.Ebay.RateLimit.Burst,
		cfg.Ebay.RateLimit.DailyLimit,
	)

	ebayClient := ebay.NewInventoryClient(
		manager.TokenSource(domain.ProviderEbay),
		limiter,
		cfg.Ebay.Marketplace,
		cfg.Ebay.Currency,
		cfg.Ebay.CategoryID,
		ebay.ListingPolicies{
			FulfillmentPolicyID: cfg.Ebay.FulfillmentPolicyID,
			PaymentPolicyID:     cfg.Ebay.PaymentPolicyID,
			ReturnPolicyID:      cfg.Ebay.ReturnPolicyID,
		},
		ebay.WithAPIBaseURL(cfg.Ebay.APIBaseURL),
	)

	etsyClient := etsy.NewListingClient(
		cfg.Etsy.ClientID,
		manager.TokenSource(domain.ProviderEtsy),
		etsy.ListingSettings{
			WhoMade:           cfg.Etsy.WhoMade,
			WhenMade:          cfg.Etsy.WhenMade,
			IsSupply:          cfg.Etsy.IsSupply,
			TaxonomyID:        cfg.Etsy.TaxonomyID,
			ShippingProfileID: cfg.Etsy.ShippingProfileID,
		},
		etsy.WithAPIBaseURL(cfg.Etsy.APIBaseURL),
	)

	var notifier notify.Notifier
	if cfg.Notifications.Discord.Enabled {
		notifier = notify.NewDiscordNotifier(cfg.Notifications.Discord.WebhookURL)
	} else {
		notifier = notify.NewNoOpNotifier(log)
	}

	pub := publisher.New(
		st, manager, ebayClient, etsyClient,
		blobs, notifier, log, cfg.Server.PublicURL,
	)

	eng := engine.New(st, manager, cfg.Schedule.TokenRefreshWindow, log)
	sched, err := engine.NewScheduler(
		eng,
		cfg.Schedule.TokenRefreshInterval,
		cfg.Schedule.StatsInterval,
		log,
	)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Recovery(log))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(st)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := handlers.NewAuthHandler(manager)
	e.GET("/auth/status", auth.Status)
	e.GET("/auth/:provider", auth.Authorize)
	e.GET("/callback/:provider", auth.Callback)

	uploads := handlers.NewUploadsHandler(blobs)
	e.POST("/api/v1/uploads", uploads.Upload)

	export := handlers.NewExportHandler(st)
	e.GET("/api/v1/export.csv", export.Export)

	// Serve uploaded product photos so marketplaces can fetch them by URL.
	e.Static(cfg.Uploads.BasePath, blobs.Dir())

	api := humaecho.New(e, huma.DefaultConfig("listify", Version))
	handlers.RegisterProductRoutes(api, handlers.NewProductsHandler(st))
	handlers.RegisterPublishRoutes(api, handlers.NewPublishHandler(pub))

	sched.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr, "public_url", cfg.Server.PublicURL)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(
		context.Background(), 10*time.Second,
	)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	<-sched.Stop().Done()

	log.Info("server stopped")
	return nil
}
