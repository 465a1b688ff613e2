// cmd/storefront/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ammerola/uniswap-edge/internal/adapters/apiclient"
	"github.com/ammerola/uniswap-edge/internal/adapters/backend"
	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/services"
	"github.com/ammerola/uniswap-edge/internal/pkg/config"
	"github.com/ammerola/uniswap-edge/internal/pkg/logger"
)

// Version is injected at compile time
var Version = "dev"

// probeInterval is how often watch checks the API while online
const probeInterval = 30 * time.Second

func main() {
	inv, err := parseInvocation(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	// Logs go to stderr so stdout stays machine readable.
	bootLogger := logger.SetupLogger(&logger.LogConfig{Level: "warn", Format: "text", Output: "stderr"})
	cfg, err := config.Load(bootLogger.Logger)
	if err != nil {
		bootLogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slogger := logger.SetupLogger(&logger.LogConfig{
		Level:          cfg.App.LogLevel,
		Format:         cfg.App.LogFormat,
		Output:         "stderr",
		Environment:    cfg.App.Environment,
		ServiceName:    "storefront",
		ServiceVersion: Version,
	}).Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, inv, os.Stdout, slogger); err != nil {
		slogger.Error("command failed",
			slog.String("command", inv.name),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, inv invocation, out io.Writer, logger *slog.Logger) error {
	store, closeStore, err := backend.OpenLocalStorage(ctx, cfg, "storefront", logger)
	if err != nil {
		return err
	}
	defer closeStore()

	session := services.NewSession(store, logger)
	if err := session.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if session.Token() == "" && cfg.API.Token != "" {
		if err := session.Login(ctx, cfg.API.Token, nil); err != nil {
			return err
		}
	}

	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	api, err := apiclient.NewClient(apiclient.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		UserAgent: "uniswap-storefront/" + Version,
	}, httpClient, session, session.Logout, logger)
	if err != nil {
		return err
	}

	mode, err := services.ParseCartMode(cfg.Cart.Mode)
	if err != nil {
		return err
	}

	client, err := services.NewClient(services.ClientConfig{
		CartMode:       mode,
		CartStorageKey: cfg.Cart.StorageKey,
		ListCache: services.ListCacheConfig{
			DedupInterval: cfg.ListCache.DedupInterval,
			RetryCount:    cfg.ListCache.RetryCount,
			RetryInterval: cfg.ListCache.RetryInterval,
		},
	}, session, apiclient.NewCartAPI(api, logger), apiclient.NewCatalogAPI(api, logger), store, logger)
	if err != nil {
		return err
	}

	switch {
	case inv.token != "":
		if err := client.Login(ctx, inv.token, nil); err != nil {
			return err
		}
		snap := client.Cart.Snapshot()
		return printJSON(out, services.Result{Cart: &snap})

	case inv.watch:
		return watch(ctx, cfg, client, httpClient, out, logger)
	}

	if inv.touchesCart() {
		if _, err := client.Execute(ctx, services.CmdFetchCart{}); err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
	}

	res, err := client.Execute(ctx, inv.cmd)
	if err != nil {
		// A failed list refresh still returns the last good page.
		if res.Commodities != nil || res.Posts != nil {
			logger.WarnContext(ctx, "showing cached data", slog.String("error", err.Error()))
			return printJSON(out, res)
		}
		return err
	}
	return printJSON(out, res)
}

// watch keeps the first page of both lists mounted and prints each change.
// Lists are revalidated whenever the API becomes reachable again.
func watch(ctx context.Context, cfg *config.Config, client *services.Client, httpClient *http.Client, out io.Writer, logger *slog.Logger) error {
	commodities := client.Catalog.CommodityView()
	defer commodities.Close()
	posts := client.Catalog.PostView()
	defer posts.Close()

	emit := func(list string) func(services.ViewState) {
		return func(st services.ViewState) {
			if st.IsLoading || !st.HasData {
				return
			}
			if err := printJSON(out, map[string]any{"list": list, "data": st.Data, "stale": st.Err != nil}); err != nil {
				logger.WarnContext(ctx, "failed to print update", slog.String("error", err.Error()))
			}
		}
	}
	defer commodities.Subscribe(emit("commodities"))()
	defer posts.Subscribe(emit("posts"))()

	if err := commodities.Show(ctx, domain.CommodityQuery{Current: 1, PageSize: 10}); err != nil {
		return err
	}
	if err := posts.Show(ctx, domain.PostQuery{Current: 1, PageSize: 10}); err != nil {
		return err
	}

	var onOnline func(context.Context) error
	if cfg.ListCache.RevalidateOnReconnect {
		onOnline = client.Lists.RevalidateMounted
	}
	probe := strings.TrimRight(cfg.API.BaseURL, "/") + "/api/health"
	monitor := services.NewMonitor(httpClient, probe, probeInterval, onOnline, logger)

	err := monitor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
