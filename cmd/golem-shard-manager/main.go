package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golem-project/golem-core/pkg/config"
	"github.com/golem-project/golem-core/pkg/log"
	"github.com/golem-project/golem-core/pkg/metrics"
	"github.com/golem-project/golem-core/pkg/rpcproto"
	"github.com/golem-project/golem-core/pkg/shardmanager"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "golem-shard-manager",
	Short:   "Golem shard manager: owns the worker-id to pod assignment",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to the shard-manager configuration document (YAML)")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(startCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Initialize and run the shard manager node",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadShardManagerConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		mgr, err := shardmanager.NewManager(shardmanager.Config{
			NodeID:           cfg.NodeID,
			BindAddr:         cfg.BindAddr,
			DataDir:          cfg.Storage.DataDir,
			TotalShardCount:  cfg.TotalShards,
			HeartbeatTimeout: 30 * time.Second,
		}, &grpcPodDialer{})
		if err != nil {
			return fmt.Errorf("create shard manager: %w", err)
		}

		fmt.Printf("Initializing shard manager %q (%d shards)...\n", cfg.NodeID, cfg.TotalShards)
		if err := mgr.Bootstrap(); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		fmt.Println("Shard manager bootstrapped")

		metrics.SetVersion(Version)
		metrics.RegisterComponent("raft", true, "bootstrapped")

		httpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.HTTPPort)
		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())
			http.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(httpAddr, nil); err != nil {
				log.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		fmt.Printf("Metrics endpoint: http://%s/metrics\n", httpAddr)

		grpcServer := grpc.NewServer()
		rpcproto.RegisterShardManagerServer(grpcServer, shardmanager.NewServer(mgr))

		grpcAddr := fmt.Sprintf("0.0.0.0:%d", cfg.GRPCPort)
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", grpcAddr, err)
		}

		errCh := make(chan error, 1)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
		fmt.Printf("Shard manager gRPC listening on %s\n", grpcAddr)
		metrics.RegisterComponent("api", true, "ready")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("Shutting down shard manager...")
		case err := <-errCh:
			fmt.Printf("Fatal error: %v\n", err)
		}

		grpcServer.GracefulStop()
		return mgr.Shutdown()
	},
}

// grpcPodDialer opens a PodControlClient over real gRPC to a registered
// pod, letting shardmanager.Manager push AssignShardIds/RevokeShardIds
// notifications (§4.5) the same way the teacher's manager pushes task
// state to its worker clients. Connections are cached per pod address
// since the manager dials the same small set of pods repeatedly across
// rebalance passes.
type grpcPodDialer struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func (d *grpcPodDialer) Dial(ctx context.Context, pod rpcproto.Pod) (rpcproto.PodControlClient, error) {
	addr := fmt.Sprintf("%s:%d", pod.Host, pod.Port)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conns == nil {
		d.conns = make(map[string]*grpc.ClientConn)
	}
	if conn, ok := d.conns[addr]; ok {
		return rpcproto.NewPodControlClient(conn), nil
	}

	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcproto.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial pod %s at %s: %w", pod.PodID, addr, err)
	}
	d.conns[addr] = conn
	return rpcproto.NewPodControlClient(conn), nil
}
