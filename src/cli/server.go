// Package cli holds the cobra commands behind the ibots-server and ibots
// binaries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/stake-plus/ibots/src/bots/all"
	"github.com/stake-plus/ibots/src/bots/waiter"
	"github.com/stake-plus/ibots/src/config"
	"github.com/stake-plus/ibots/src/control"
	"github.com/stake-plus/ibots/src/control/webserver"
	"github.com/stake-plus/ibots/src/graphql"
	"github.com/stake-plus/ibots/src/journal"
	"github.com/stake-plus/ibots/src/logging"
	"github.com/stake-plus/ibots/src/state"
)

const shutdownTimeout = 30 * time.Second

// ServerOptions are the ibots-server flags.
type ServerOptions struct {
	Port      int
	Bots      []string
	Directory string
	LogLevel  string
	Pretty    bool
	Init      bool
}

// NewServerCommand creates the ibots-server root command.
func NewServerCommand() *cobra.Command {
	opts := &ServerOptions{}

	cmd := &cobra.Command{
		Use:   "ibots-server <config>",
		Short: "Run the configured bots behind the control plane",
		Long: `Load the configuration, start every selected bot and serve the control
plane until interrupted. With --init a sample configuration is written to
<config> instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Init {
				if err := config.InitConfig(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", args[0])
				return nil
			}
			cfg, err := loadServerConfig(cmd, args[0], opts)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return RunServer(ctx, cfg)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 8000, "control plane port")
	cmd.Flags().StringSliceVarP(&opts.Bots, "bots", "b", nil, "bots to run (default all configured)")
	cmd.Flags().StringVarP(&opts.Directory, "directory", "d", "", "state directory (default from config)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "log level (default from config)")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "human-readable console logs")
	cmd.Flags().BoolVar(&opts.Init, "init", false, "write a sample configuration and exit")
	return cmd
}

// loadServerConfig applies explicitly set flags over the loaded config.
func loadServerConfig(cmd *cobra.Command, path string, opts *ServerOptions) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Control.Port = opts.Port
	}
	if opts.Directory != "" {
		cfg.Storage.Directory = opts.Directory
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Pretty {
		cfg.Log.Pretty = true
	}
	if err := cfg.Select(opts.Bots); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunServer wires every component from cfg and blocks until ctx ends.
func RunServer(ctx context.Context, cfg *config.Config) error {
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	log := logging.ForComponent("server")

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var sink journal.Sink
	if cfg.Journal.MySQLDSN != "" {
		s, err := journal.NewMySQLSink(cfg.Journal.MySQLDSN)
		if err != nil {
			return err
		}
		sink = s
	}

	catalog, err := graphql.DefaultCatalog()
	if err != nil {
		return err
	}

	w := waiter.New(graphql.NewTracker(cfg.Global.Endpoint, cfg.Global.HTTPTimeout), cfg.Global.PollInterval)
	go w.Run(ctx)

	resourceSpecs := make([]control.ResourceSpec, 0, len(cfg.Resources))
	for name, r := range cfg.Resources {
		resourceSpecs = append(resourceSpecs, control.ResourceSpec{Name: name, Class: r.Class, Args: r.Args})
	}
	resources, err := control.BuildResources(resourceSpecs)
	if err != nil {
		return err
	}

	bots := make([]control.Spec, 0, len(cfg.Bots))
	for _, name := range cfg.BotNames() {
		b := cfg.Bots[name]
		bots = append(bots, control.Spec{
			Name: name, Class: b.Class, Username: b.Username, Password: b.Password,
			Resources: b.Resources, Args: b.Args,
		})
	}

	mgr, err := control.NewManager(control.Options{
		Bots:      bots,
		Store:     store,
		Resources: resources,
		Factory: control.NewFactory(control.RuntimeDeps{
			Endpoint:    cfg.Global.Endpoint,
			HTTPTimeout: cfg.Global.HTTPTimeout,
			MaxRPS:      cfg.Global.MaxRPS,
			Catalog:     catalog,
			Waiter:      w,
			Store:       store,
			Resources:   resources,
			PageSize:    cfg.Global.PageSize,
			WaitSlice:   cfg.Global.WaitSlice,
			JournalSize: cfg.Journal.Size,
			Sink:        sink,
		}),
	})
	if err != nil {
		return err
	}

	started, err := mgr.Start(ctx, nil)
	if err != nil {
		return err
	}
	for name, result := range started {
		log.Info().Str("bot", name).Str("result", result).Msg("boot")
	}

	router := webserver.New(mgr, webserver.Config{
		AllowOrigins: cfg.Control.AllowOrigins,
		JWTSecret:    cfg.Control.JWTSecret,
		RateLimit:    cfg.Control.RateLimit,
		RateWindow:   time.Minute,
	})
	serveErr := webserver.Serve(ctx, router, webserver.ServeOptions{
		Addr:     ":" + strconv.Itoa(cfg.Control.Port),
		CertFile: cfg.Control.TLSCert,
		KeyFile:  cfg.Control.TLSKey,
	})

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := mgr.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("bots did not stop cleanly")
	}
	log.Info().Msg("server stopped")
	return serveErr
}

func openStore(cfg *config.Config) (state.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "redis":
		s, err := state.NewRedisStore(cfg.Storage.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		s, err := state.NewFileStore(cfg.Storage.Directory)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}
