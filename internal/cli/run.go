package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/salexandr0s/scry/internal/config"
	"github.com/salexandr0s/scry/internal/gateway"
	"github.com/salexandr0s/scry/internal/graph"
	"github.com/salexandr0s/scry/internal/mirror"
	"github.com/salexandr0s/scry/internal/relay"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the mirror daemon and local relay",
	Long: `Connect to the configured gateway, mirror its event stream into the
activity graph, and serve snapshots and deltas on the local relay until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("gateway", "", "Gateway WebSocket URL (overrides config)")
	runCmd.Flags().String("token", "", "Gateway bearer token (overrides config)")
	runCmd.Flags().Int("port", 0, "Relay listen port (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("gateway"); v != "" {
		cfg.Gateway.URL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.Gateway.Token = v
	}
	if v, _ := cmd.Flags().GetInt("port"); v > 0 {
		cfg.Relay.Port = v
	}

	store := graph.NewStore(graph.Config{
		MaxNodes:  cfg.Mirror.MaxNodes,
		MaxEdges:  cfg.Mirror.MaxEdges,
		MaxEvents: cfg.Mirror.MaxEvents,
		NodeTTL:   time.Duration(cfg.Mirror.NodeTTLMS) * time.Millisecond,
	})

	client := gateway.NewClient(gateway.Options{
		URL:         cfg.Gateway.URL,
		Token:       cfg.Gateway.Token,
		ClientName:  cfg.Gateway.Client,
		MinProtocol: cfg.Gateway.MinProtocol,
		MaxProtocol: cfg.Gateway.MaxProtocol,
		Scopes:      cfg.Gateway.Scopes,
	})
	poller := gateway.NewPoller(cfg.Gateway.URL, cfg.Gateway.Token)

	svc := mirror.New(store, mirror.GatewayDialer{Client: client}, poller, mirror.Options{
		ReconnectDelay:       time.Duration(cfg.Mirror.ReconnectDelayMS) * time.Millisecond,
		MaxReconnectAttempts: cfg.Mirror.MaxReconnectAttempts,
		PollInterval:         time.Duration(cfg.Mirror.PollIntervalMS) * time.Millisecond,
		EvictInterval:        time.Duration(cfg.Mirror.EvictIntervalMS) * time.Millisecond,
	})

	srv := relay.New(svc, relay.Options{
		Host:      cfg.Relay.Host,
		Port:      cfg.Relay.Port,
		AuthToken: cfg.Relay.AuthToken,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svc.Start(ctx)
	if err := srv.Start(); err != nil {
		svc.Stop()
		return err
	}

	fmt.Printf("%sscry%s mirroring %s\n", styleBoldCyan, colorReset, cfg.Gateway.URL)
	fmt.Printf("relay listening on http://%s\n", srv.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	fmt.Println("\nshutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "relay shutdown: %v\n", err)
	}
	svc.Stop()
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(path)
}
