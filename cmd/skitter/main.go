package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skitterhq/skitter/pkg/beacon"
	"github.com/skitterhq/skitter/pkg/cluster"
	"github.com/skitterhq/skitter/pkg/component"
	"github.com/skitterhq/skitter/pkg/config"
	"github.com/skitterhq/skitter/pkg/deploy"
	"github.com/skitterhq/skitter/pkg/dispatcher"
	"github.com/skitterhq/skitter/pkg/health"
	"github.com/skitterhq/skitter/pkg/httpapi"
	"github.com/skitterhq/skitter/pkg/log"
	"github.com/skitterhq/skitter/pkg/mode"
	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/placement"
	"github.com/skitterhq/skitter/pkg/registry"
	"github.com/skitterhq/skitter/pkg/strategy"
	"github.com/skitterhq/skitter/pkg/strategy/builtin"
	"github.com/skitterhq/skitter/pkg/subscribe"
	"github.com/skitterhq/skitter/pkg/task"
	"github.com/skitterhq/skitter/pkg/transport"
	"github.com/skitterhq/skitter/pkg/worker"
	"github.com/skitterhq/skitter/pkg/workflow"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "skitter",
	Short: "Skitter - a distributed reactive dataflow runtime",
	Long: `Skitter deploys reactive dataflows across a cluster of worker
processes coordinated by a master: operations, workflows of linked
operations, and strategies that decide how a workflow is placed and run.

Operation and strategy definitions live in the Go program embedding
this package (see pkg/operation, pkg/strategy); this binary boots the
cluster transport, deploy pipeline, and the built-in strategies
registered by pkg/strategy/builtin.`,
	Version: Version,
	RunE:    runRuntime,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"skitter version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	config.BindFlags(rootCmd, v)
	rootCmd.PersistentFlags().String("cookie", "skitter", "Shared cluster cookie authenticating transport calls")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	cfg, err := config.Load(v)
	if err != nil {
		return
	}
	logCfg := log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON}
	if cfg.Log != "" {
		f, err := os.OpenFile(cfg.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skitter: opening log file %s: %v\n", cfg.Log, err)
		} else {
			logCfg.Output = io.MultiWriter(os.Stdout, f)
		}
	}
	log.Init(logCfg)
}

func runRuntime(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	cookie := v.GetString("cookie")
	waitTime, err := time.ParseDuration(cfg.WaitTime)
	if err != nil {
		waitTime = 30 * time.Second
	}

	localName := cfg.Bind
	logger := log.WithNode(localName)

	b := beacon.New(Version, cfg.Mode)
	d := dispatcher.New()
	reg := registry.New()
	tags := registry.NewTags()
	pool := transport.NewPool(cookie)
	notifier := subscribe.New()
	store := component.New()
	workers := worker.NewRegistry()
	tasks := task.New(pool, reg)

	runtime := &cluster.Runtime{
		Beacon:     b,
		Dispatcher: d,
		Registry:   reg,
		Tags:       tags,
		Pool:       pool,
		Notifier:   notifier,
		LocalName:  localName,
	}

	handler := transport.NewHandler(b, d, localName)

	// The accepting side of a connect handshake arms its own remote-down
	// monitor here, mirroring what connect.Connect does for the dialing
	// side: without this, only the node that dials ever learns when its
	// peer goes away, and the accepting side's registry entry for it
	// never gets cleaned up.
	handler.OnAccepted = func(remote string, accepted dispatcher.Handler) {
		client, err := pool.Get(remote)
		if err != nil {
			logger.Error().Err(err).Str("remote", remote).Msg("accept: failed to dial back for health monitoring")
			return
		}
		health.Watch(client, remote, health.DefaultMonitorConfig(), func(r string) {
			accepted.RemoteDown(r)
		})
	}

	// The placement backend is both a strategy.Creator (deploy hooks spawn
	// workers through it) and a strategy.Sender (deliver/process hooks
	// route messages through it); built-in strategies are constructed
	// against it below.
	var creator strategy.Creator
	var sender strategy.Sender
	switch cfg.Mode {
	case mode.Local:
		local := placement.NewLocal(workers)
		creator, sender = local, local
	default:
		clusterPlacement := placement.NewCluster(reg, tags, tasks, workers, store)
		clusterPlacement.RegisterRPC(handler)
		creator, sender = clusterPlacement, clusterPlacement
	}

	registries := deploy.Registries{
		Operations: make(map[string]*operation.Operation),
		Strategies: map[string]strategy.Strategy{
			builtin.Name: builtin.New(store, sender),
		},
	}
	pipeline := deploy.New(registries, store, reg, tasks, notifier, localName)
	pipeline.RegisterRPC(handler)

	server := transport.NewServer(handler, cookie)
	listener, err := net.Listen("tcp", cfg.Bind)
	if err != nil {
		return fmt.Errorf("skitter: listening on %s: %w", cfg.Bind, err)
	}
	go func() {
		if err := server.Serve(listener); err != nil {
			logger.Error().Err(err).Msg("transport server stopped")
		}
	}()

	httpServer := &http.Server{
		Addr: cfg.HTTPBind,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Mode:     cfg.Mode,
			Name:     localName,
			Registry: reg,
			Store:    store,
		}),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), waitTime)
	defer cancel()

	switch cfg.Mode {
	case mode.Master:
		parsed, err := config.ParseWorkers(cfg.Workers)
		if err != nil {
			return err
		}
		addrs := make([]string, 0, len(parsed))
		for _, pw := range parsed {
			addrs = append(addrs, pw.Host)
		}
		var shutdown func(int)
		if cfg.ShutdownWithWorkers {
			shutdown = cluster.ExitOnWorkerFailure
		}
		if err := cluster.StartMaster(ctx, runtime, addrs, cfg.ShutdownWithWorkers, shutdown, pipeline.OnWorkerUp); err != nil {
			return err
		}
		if cfg.WorkerFile != "" {
			watchWorkerFile(cfg.WorkerFile, runtime, reg, logger)
		}
	case mode.Worker:
		var shutdown func()
		if !cfg.NoShutdownWithMaster {
			shutdown = cluster.ExitOnMasterFailure
		}
		cluster.StartWorker(ctx, runtime, cfg.Master, !cfg.NoShutdownWithMaster, shutdown)
	case mode.Local:
		// No cluster membership: this runtime serves itself only.
	}

	if cfg.Deploy != "" && cfg.Mode != mode.Worker {
		wf, err := workflow.LoadFile(cfg.Deploy, "main")
		if err != nil {
			return fmt.Errorf("skitter: loading deploy file: %w", err)
		}
		if _, err := pipeline.Deploy(context.Background(), wf, creator); err != nil {
			return fmt.Errorf("skitter: deploying %s: %w", cfg.Deploy, err)
		}
	}

	logger.Info().Str("mode", string(cfg.Mode)).Str("bind", cfg.Bind).Msg("skitter runtime started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	server.GracefulStop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	pool.CloseAll()
	return nil
}

// watchWorkerFile watches path for changes and dials any worker address it
// lists that isn't already connected, letting a master pick up new workers
// without a restart. Reg reports currently-connected remotes so an
// unchanged entry isn't redialed on every write.
func watchWorkerFile(path string, runtime *cluster.Runtime, reg *registry.Registry, logger zerolog.Logger) {
	applyFile := func() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error().Err(err).Str("file", path).Msg("worker file: read failed")
			return
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		connected := make(map[string]bool)
		for _, addr := range reg.All() {
			connected[addr] = true
		}
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" || connected[line] {
				continue
			}
			pw, err := config.ParseWorker(line)
			if err != nil {
				logger.Warn().Err(err).Str("entry", line).Msg("worker file: skipping invalid entry")
				continue
			}
			if connected[pw.Host] {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err = cluster.ConnectWorker(ctx, runtime, pw.Host)
			cancel()
			if err != nil {
				logger.Error().Err(err).Str("worker", pw.Host).Msg("worker file: connect failed")
			} else {
				logger.Info().Str("worker", pw.Host).Msg("worker file: connected new worker")
			}
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error().Err(err).Msg("worker file: watcher init failed, skipping")
		return
	}
	if err := watcher.Add(path); err != nil {
		logger.Error().Err(err).Str("file", path).Msg("worker file: watch failed, skipping")
		watcher.Close()
		return
	}

	applyFile()
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					applyFile()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error().Err(err).Msg("worker file: watch error")
			}
		}
	}()
}
