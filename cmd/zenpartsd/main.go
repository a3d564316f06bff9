package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("ZenParts v%s\n", version)
	fmt.Println("Device settings daemon for torch, audio gain, vibrator, display and boost tunables")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  zenpartsd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Builds the device settings panel from the kernel's sysfs nodes and system")
	fmt.Println("  properties, then applies every accepted widget change to its sink.")
	fmt.Println("  Clients use the Unix socket (zenparts-ctl), the HTTP API or the state")
	fmt.Println("  websocket (zenparts-watch).")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -sysfs-root string")
	fmt.Println("        Prefix for every sysfs node path (default \"/\")")
	fmt.Println()
	fmt.Println("  -property-backend string")
	fmt.Println("        System property backend: android|dir (default \"android\")")
	fmt.Println()
	fmt.Println("  -props-dir string")
	fmt.Println("        Directory holding one file per property (dir backend)")
	fmt.Println()
	fmt.Println("  -kcal-component string")
	fmt.Printf("        Activity opened by the KCal entry (default %q)\n", defaultKCalComponent)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocketPath)
	fmt.Println()
	fmt.Println("  -http-listen string")
	fmt.Printf("        HTTP API listen address; empty disables it (default %q)\n", defaultHTTPListenAddr)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # On the device")
	fmt.Println("  zenpartsd -config /data/local/zenparts.yaml")
	fmt.Println()
	fmt.Println("  # On a development host against a fake sysfs tree")
	fmt.Println("  zenpartsd -sysfs-root ./testdata/sysfs -property-backend dir -props-dir ./testdata/props")
	fmt.Println()
}

func main() {
	var (
		configPath      = flag.String("config", "", "YAML config file")
		sysfsRoot       = flag.String("sysfs-root", "/", "Prefix for every sysfs node path")
		propertyBackend = flag.String("property-backend", propertyBackendAndroid, "System property backend: android|dir")
		propsDir        = flag.String("props-dir", "", "Directory holding one file per property (dir backend)")
		kcalComponent   = flag.String("kcal-component", defaultKCalComponent, "Activity opened by the KCal entry")
		ipcSocketPath   = flag.String("ipc-socket", defaultIPCSocketPath, "Unix domain socket path for IPC")
		httpListenAddr  = flag.String("http-listen", defaultHTTPListenAddr, "HTTP API listen address; empty disables it")
		logLevelStr     = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion     = flag.Bool("version", false, "Print version and exit")
		showHelp        = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Defaults, then the file, then explicitly set flags.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sysfs-root":
			overrides.SysfsRoot = sysfsRoot
		case "property-backend":
			overrides.PropertyBackend = propertyBackend
		case "props-dir":
			overrides.PropsDir = propsDir
		case "kcal-component":
			overrides.KCalComponent = kcalComponent
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "http-listen":
			overrides.HTTPListenAddr = httpListenAddr
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logger, err := cfg.Logging.NewLogger(os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logger.Debug("starting zenpartsd", "version", version)
	logger.Debug("configuration",
		"sysfs_root", cfg.Device.SysfsRoot,
		"property_backend", cfg.Device.PropertyBackend,
		"props_dir", cfg.Device.PropsDir,
		"kcal_component", cfg.Device.KCalComponent,
		"command_timeout_ms", cfg.Device.CommandTimeoutMS,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_listen", cfg.HTTP.ListenAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("zenpartsd stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run starts the daemon loop and every client surface, and returns when ctx
// is canceled or one of them fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	env := cfg.PanelEnv()
	bindings := cfg.Bindings()

	events := make(chan Event, eventQueueSize)
	client := newPanelClient(events, requestTimeout)

	// Broadcasts are only produced when someone can receive them.
	var broadcasts chan StateBroadcast
	if cfg.HTTP.ListenAddr != "" {
		broadcasts = make(chan StateBroadcast, eventQueueSize)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var out chan<- StateBroadcast
		if broadcasts != nil {
			out = broadcasts
		}
		runDaemon(ctx, events, env, bindings, &DaemonState{}, out, logger)
		return nil
	})

	// Screen creation: probe every sink once the loop is running.
	g.Go(func() error {
		if err := client.Rebuild(ctx); err != nil {
			logger.Warn("initial panel build failed", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, client, logger)
	})

	if cfg.HTTP.ListenAddr != "" {
		ws := NewServer(logger, client, ServerConfig{})
		g.Go(func() error {
			ws.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, ws.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(ctx, cfg.HTTP.ListenAddr, newRouter(client, ws, logger), logger)
		})
	}

	logger.Info("listening", "ipc", cfg.IPC.SocketPath, "http", cfg.HTTP.ListenAddr)

	return g.Wait()
}
