package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zepef/ai-honeypot/internal/config"
	"github.com/zepef/ai-honeypot/internal/eventbus"
	"github.com/zepef/ai-honeypot/internal/httpapi"
	"github.com/zepef/ai-honeypot/internal/mcprouter"
	"github.com/zepef/ai-honeypot/internal/session"
	"github.com/zepef/ai-honeypot/internal/simulator"
	"github.com/zepef/ai-honeypot/internal/simulator/tools"
	"github.com/zepef/ai-honeypot/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "honeypot",
		Short: "MCP-speaking deception server that fabricates plausible tool output for attackers",
		RunE:  run,
	}

	f := rootCmd.Flags()
	f.String("db-path", "honeypot.db", "path to the SQLite database file")
	f.String("host", "0.0.0.0", "HTTP listen host")
	f.Int("port", 5000, "HTTP listen port")
	f.Bool("debug", false, "enable verbose logging")
	f.Int("session-ttl", 3600, "seconds of idle time before a session is evicted from the cache")
	f.String("dashboard-api-key", "", "bearer token required for the dashboard API (empty disables auth)")
	f.String("cors-origin", "", "origin allowed to read the dashboard API and live event stream (empty disables CORS)")
	f.Int("mcp-rate-limit-requests", 60, "max MCP requests per session/IP per window")
	f.Int("mcp-rate-limit-window", 60, "MCP rate limit window, in seconds")
	f.Int("dashboard-rate-limit-requests", 120, "max dashboard API requests per IP per window")
	f.Int("dashboard-rate-limit-window", 60, "dashboard rate limit window, in seconds")

	bindFlag := func(viperKey, flagName string) {
		_ = viper.BindPFlag(viperKey, f.Lookup(flagName))
	}
	bindFlag("db_path", "db-path")
	bindFlag("host", "host")
	bindFlag("port", "port")
	bindFlag("debug", "debug")
	bindFlag("session_ttl", "session-ttl")
	bindFlag("dashboard_api_key", "dashboard-api-key")
	bindFlag("cors_origin", "cors-origin")
	bindFlag("mcp_rate_limit_requests", "mcp-rate-limit-requests")
	bindFlag("mcp_rate_limit_window", "mcp-rate-limit-window")
	bindFlag("dashboard_rate_limit_requests", "dashboard-rate-limit-requests")
	bindFlag("dashboard_rate_limit_window", "dashboard-rate-limit-window")

	// HONEYPOT_DB_PATH, HONEYPOT_HOST, etc. DASHBOARD_API_KEY is bound
	// without the prefix below since it's shared with other deployment
	// tooling that expects it bare.
	viper.SetEnvPrefix("HONEYPOT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if key := os.Getenv("DASHBOARD_API_KEY"); key != "" {
		viper.Set("dashboard_api_key", key)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	fmt.Printf("internal-devops-tools %s starting\n", config.Version)
	fmt.Printf("  Database: %s\n", cfg.DBPath)
	fmt.Printf("  Listen: %s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("  Session TTL: %ds\n", cfg.SessionTTLSecs)
	fmt.Printf("  Dashboard auth: %t\n", cfg.DashboardAPIKey != "")
	fmt.Println()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close() //nolint:errcheck

	bus := eventbus.New()
	sessions := session.New(st, bus, time.Duration(cfg.SessionTTLSecs)*time.Second)

	registry := simulator.NewRegistry(st, sessions, bus)
	registry.Register(tools.NewNmapSimulator())
	registry.Register(tools.NewDNSLookupSimulator())
	registry.Register(tools.NewFileReadSimulator(st))
	registry.Register(tools.NewShellExecSimulator())
	registry.Register(tools.NewSqlmapSimulator(st))
	registry.Register(tools.NewBrowserSimulator(st))
	registry.Register(tools.NewAWSCliSimulator(st))
	registry.Register(tools.NewKubectlSimulator(st))
	registry.Register(tools.NewVaultCliSimulator(st))
	registry.Register(tools.NewDockerRegistrySimulator(st))

	router := mcprouter.New(sessions, registry)
	server := httpapi.New(cfg, router, bus, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sessions.Run(ctx)

	go func() {
		if err := server.Start(); err != nil {
			log.Printf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("received %s, shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}

	return nil
}
