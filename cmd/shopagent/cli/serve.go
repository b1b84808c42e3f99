package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/brizzle/shopagent"
	"github.com/brizzle/shopagent/api"
	"github.com/brizzle/shopagent/config"
	"github.com/brizzle/shopagent/integration/imagegen"
	"github.com/brizzle/shopagent/integration/printful"
	"github.com/brizzle/shopagent/integration/rube"
	"github.com/brizzle/shopagent/logging"
	"github.com/brizzle/shopagent/provider"
	anthropicadapter "github.com/brizzle/shopagent/provider/anthropic"
	geminiadapter "github.com/brizzle/shopagent/provider/gemini"
	openaiadapter "github.com/brizzle/shopagent/provider/openai"
	"github.com/brizzle/shopagent/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(func(o *logging.Options) {
		o.Level = logging.ParseLevel(cfg.LogLevel)
	})

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	primary, err := buildAdapter(ctx, cfg, cfg.Providers.Primary)
	if err != nil {
		return err
	}
	var fallback provider.Adapter
	if cfg.Providers.Fallback != "" {
		fallback, err = buildAdapter(ctx, cfg, cfg.Providers.Fallback)
		if err != nil {
			return err
		}
	}

	var designer shopagent.Designer = imagegen.New(nil, func(o *imagegen.Options) { o.Logger = logger })
	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		client := openai.NewClient(option.WithAPIKey(key))
		designer = imagegen.New(&client, func(o *imagegen.Options) { o.Logger = logger })
	}
	var fulfillment shopagent.Fulfillment
	if cfg.Printful.APIKey != "" {
		fulfillment = printful.New(cfg.Printful.APIKey)
	}

	assistant := shopagent.New(primary, func(o *shopagent.Options) {
		o.Fallback = fallback
		o.Store = db
		o.Catalog = db
		o.Orders = db
		o.Designer = designer
		o.Fulfillment = fulfillment
		o.Workflows = rube.New(cfg.Rube.APIKey)
		o.MaxRounds = cfg.Agent.MaxRounds
		o.HistoryLimit = cfg.Agent.HistoryLimit
		o.ProviderTimeout = time.Duration(cfg.Agent.ProviderTimeoutSec) * time.Second
		o.DispatchTimeout = time.Duration(cfg.Agent.DispatchTimeoutSec) * time.Second
		o.Logger = logger
	})

	server := api.NewServer(assistant, db, db, func(o *api.Options) { o.Logger = logger })

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening", "addr", addr, "primary", cfg.Providers.Primary, "fallback", cfg.Providers.Fallback)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("server.shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	path, err := config.FindConfig(configPath)
	if err != nil {
		// No file is fine as long as provider keys arrive via environment.
		cfg := config.Default()
		if cfg.Providers.Primary == "" {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

func buildAdapter(ctx context.Context, cfg *config.Config, name string) (provider.Adapter, error) {
	switch name {
	case "openai":
		client := openai.NewClient(option.WithAPIKey(cfg.Providers.OpenAI.APIKey))
		return openaiadapter.NewFromClient(&client, func(o *openaiadapter.Options) {
			if cfg.Providers.OpenAI.Model != "" {
				o.Model = cfg.Providers.OpenAI.Model
			}
		}), nil
	case "anthropic":
		return anthropicadapter.New(func(o *anthropicadapter.Options) {
			o.APIKey = cfg.Providers.Anthropic.APIKey
			if cfg.Providers.Anthropic.Model != "" {
				o.Model = anthropic.Model(cfg.Providers.Anthropic.Model)
			}
		}), nil
	case "gemini":
		return geminiadapter.New(ctx, cfg.Providers.Gemini.APIKey, func(o *geminiadapter.Options) {
			if cfg.Providers.Gemini.Model != "" {
				o.Model = cfg.Providers.Gemini.Model
			}
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
