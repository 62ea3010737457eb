package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golem-project/golem-core/pkg/component"
	"github.com/golem-project/golem-core/pkg/config"
	"github.com/golem-project/golem-core/pkg/executor"
	"github.com/golem-project/golem-core/pkg/ids"
	"github.com/golem-project/golem-core/pkg/log"
	"github.com/golem-project/golem-core/pkg/metrics"
	"github.com/golem-project/golem-core/pkg/oplog"
	"github.com/golem-project/golem-core/pkg/rpcproto"
	"github.com/golem-project/golem-core/pkg/wasmengine"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "golem-executor",
	Short:   "Golem executor: hosts durable WASM-component workers on one pod",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to the executor configuration document (YAML)")
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
	Short: "Start the executor pod process",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadExecutorConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx := context.Background()
		podID := ids.NewPodId()

		store, err := oplog.NewBoltStore(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("open oplog store: %w", err)
		}
		defer store.Close()

		// Component Service is an external, out-of-scope collaborator
		// (§1); until a real client exists, this pod resolves components
		// through an in-memory loader populated out of band.
		loader := component.NewInMemoryLoader()

		engine, err := wasmengine.NewEngine(ctx, cfg.CompilationCacheEnabled)
		if err != nil {
			return fmt.Errorf("start WASM engine: %w", err)
		}
		defer engine.Close(ctx)

		shards := executor.NewShardSet()
		exec := executor.New(executor.Config{
			Oplog:          store,
			Loader:         loader,
			Shards:         shards,
			TotalShards:    cfg.TotalShards,
			MemoryCapBytes: cfg.MemoryCapBytes,
			Invoker:        wasmengine.Invoker{},
			NewInstance:    wasmengine.NewInstanceFactory(engine, loader),
		})
		exec.Scheduler().Start()
		defer exec.Scheduler().Stop()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("oplog", true, "ready")
		metrics.RegisterComponent("wasm_engine", true, "ready")
		metrics.RegisterComponent("shard_manager", false, "registering")

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

		grpcServer := grpc.NewServer(grpc.UnaryInterceptor(executor.MetricsInterceptor()))
		rpcproto.RegisterExecutorServer(grpcServer, executor.NewServer(exec))
		rpcproto.RegisterPodControlServer(grpcServer, executor.NewPodControlServer(exec))

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
		fmt.Printf("Executor gRPC listening on %s\n", grpcAddr)

		podHost, _ := cmd.Flags().GetString("pod-host")
		if err := registerWithShardManager(ctx, cfg, exec, podID, podHost, int32(cfg.GRPCPort)); err != nil {
			log.Logger.Warn().Err(err).Msg("initial shard-manager registration failed")
		} else {
			metrics.RegisterComponent("shard_manager", true, "registered")
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("Shutting down executor...")
		case err := <-errCh:
			fmt.Printf("Fatal error: %v\n", err)
		}

		grpcServer.GracefulStop()
		return nil
	},
}

func init() {
	startCmd.Flags().String("pod-host", "127.0.0.1", "Host this pod advertises to the shard manager")
}

// registerWithShardManager dials the configured Shard Manager, registers
// this pod, and applies the initial shard assignment it returns (§4.5
// Register RPC).
func registerWithShardManager(ctx context.Context, cfg config.ExecutorConfig, exec *executor.Executor, podID ids.PodId, podHost string, grpcPort int32) error {
	conn, err := grpc.Dial(cfg.ShardManagerEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcproto.CodecName)),
	)
	if err != nil {
		return fmt.Errorf("dial shard manager at %s: %w", cfg.ShardManagerEndpoint, err)
	}
	defer conn.Close()

	client := rpcproto.NewShardManagerClient(conn)
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := client.Register(callCtx, &rpcproto.RegisterRequest{
		Pod: rpcproto.Pod{PodID: podID.String(), Host: podHost, Port: grpcPort},
	})
	if err != nil {
		return fmt.Errorf("register pod %s: %w", podID, err)
	}

	shards := make([]ids.ShardId, len(resp.AssignedShards))
	for i, s := range resp.AssignedShards {
		shards[i] = ids.ShardId(s)
	}
	exec.AssignShardIds(resp.AssignmentGeneration, shards)
	return nil
}
