package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/mcpbridge/pkg/client"
	"github.com/ajitpratap0/mcpbridge/pkg/config"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/base"
	"github.com/ajitpratap0/mcpbridge/pkg/connector/registry"
	jsonpool "github.com/ajitpratap0/mcpbridge/pkg/json"
	"github.com/ajitpratap0/mcpbridge/pkg/logger"
	"github.com/ajitpratap0/mcpbridge/pkg/mcp"
	"github.com/ajitpratap0/mcpbridge/pkg/metrics"
	"github.com/ajitpratap0/mcpbridge/pkg/observability"
	"github.com/ajitpratap0/mcpbridge/pkg/transport/redisbus"

	// Register the connector factories
	_ "github.com/ajitpratap0/mcpbridge/pkg/connector/graphql"
	_ "github.com/ajitpratap0/mcpbridge/pkg/connector/rest"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MCPBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "mcpbridge",
		Short: "mcpbridge - route MCP envelopes to REST and GraphQL APIs",
		Long: `mcpbridge translates MCP request envelopes into calls against configured
REST and GraphQL backends and answers every request with exactly one
RESPONSE or ERROR envelope.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Path to the YAML configuration file")
	flags.String("log-level", "", "Log level override (debug, info, warn, error)")
	flags.String("redis-addr", "", "Redis address override for serve")
	flags.String("metrics-addr", "", "Metrics listen address override for serve")
	for _, name := range []string{"config", "log-level", "redis-addr", "metrics-addr"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mcpbridge v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newListCommand(v), newCallCommand(v), newServeCommand(v))
	return root
}

// loadConfig reads the configured file, or starts from defaults when none is
// given, and applies flag and environment overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	var cfg *config.Config
	if path := v.GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.NewConfig()
	}

	if level := v.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if addr := v.GetString("redis-addr"); addr != "" {
		cfg.Transport.Addr = addr
	}
	if addr := v.GetString("metrics-addr"); addr != "" {
		cfg.Service.MetricsAddr = addr
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg := registry.NewRegistry(nil)
	if err := reg.Build(cfg, base.WithLogger(logger.Get())); err != nil {
		return nil, err
	}
	return reg, nil
}

type intentLister interface {
	Intents() []string
}

func newListCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connector types and configured connectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg)
			if err != nil {
				return err
			}
			defer reg.Close()

			fmt.Println("Connector types:")
			for _, t := range registry.Factories() {
				fmt.Printf("  - %s\n", t)
			}

			fmt.Println("\nConfigured connectors:")
			names := reg.List()
			if len(names) == 0 {
				fmt.Println("  (none)")
			}
			for _, name := range names {
				conn, _ := reg.Get(name)
				fmt.Printf("  - %s (%s) -> %s\n", name, conn.APIType(), registry.Destination(name))
				if l, ok := conn.(intentLister); ok {
					for _, intent := range l.Intents() {
						fmt.Printf("      %s\n", intent)
					}
				}
			}
			return nil
		},
	}
}

func newCallCommand(v *viper.Viper) *cobra.Command {
	var (
		api     string
		intent  string
		params  []string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Send one request envelope to a configured API and print the reply",
		Example: `  mcpbridge call -c mcpbridge.yaml --api weather --intent get_current_weather \
    --param city=London --param days=3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg)
			if err != nil {
				return err
			}
			defer reg.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c := client.New(reg.Router(), client.WithLogger(logger.Get()))
			resp, err := c.CallAPI(ctx, api, intent, p, nil)
			if err != nil {
				return err
			}

			out, err := jsonpool.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode reply: %w", err)
			}
			fmt.Println(string(out))

			if resp.IsError() {
				return fmt.Errorf("request failed: %s", resp.Payload.ErrorCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&api, "api", "", "API name to call (required)")
	cmd.Flags().StringVar(&intent, "intent", "", "Intent to invoke (required)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Parameter as key=value; JSON values are decoded")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Overall deadline for the call")
	_ = cmd.MarkFlagRequired("api")
	_ = cmd.MarkFlagRequired("intent")
	return cmd
}

// parseParams turns key=value pairs into Params. A value that parses as
// JSON keeps its type, anything else is sent as a string.
func parseParams(pairs []string) (mcp.Params, error) {
	params := make(mcp.Params, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", pair)
		}

		var decoded interface{}
		if err := jsonpool.Unmarshal([]byte(raw), &decoded); err != nil {
			params[key] = mcp.String(raw)
			continue
		}
		val, err := mcp.ValueOf(decoded)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter %q: %w", key, err)
		}
		params[key] = val
	}
	return params, nil
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve request envelopes from Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.With(zap.String("service", cfg.Service.Name))

			shutdownTracing, err := observability.Initialize(cfg.Observability)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(ctx); err != nil {
					log.Warn("failed to flush traces", zap.Error(err))
				}
			}()

			reg, err := buildRegistry(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := reg.Close(); err != nil {
					log.Warn("failed to close connectors", zap.Error(err))
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Service.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				metricsServer := &http.Server{
					Addr:              cfg.Service.MetricsAddr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					log.Info("serving metrics", zap.String("addr", cfg.Service.MetricsAddr))
					if err := metricsServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
						log.Error("metrics server failed", zap.Error(err))
						stop()
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = metricsServer.Shutdown(shutdownCtx)
				}()
			}

			rdb := redisbus.NewRedisClient(cfg.Transport)
			defer rdb.Close()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to reach redis at %s: %w", cfg.Transport.Addr, err)
			}

			log.Info("mcpbridge started",
				zap.String("version", version),
				zap.Strings("connectors", reg.List()),
				zap.String("redis", cfg.Transport.Addr))

			srv := redisbus.NewServer(rdb, reg.Router(), redisbus.OptionsFromConfig(cfg.Transport, log))
			return srv.Serve(ctx)
		},
	}
}
