package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"precioverdadero/internal/board"
	"precioverdadero/internal/config"
	"precioverdadero/internal/connectivity"
	"precioverdadero/internal/logging"
	"precioverdadero/internal/models"
	"precioverdadero/internal/notify"
	"precioverdadero/internal/offline"
	"precioverdadero/internal/submission"
	"precioverdadero/internal/syncer"
	"precioverdadero/pkg/circuitbreaker"
	"precioverdadero/pkg/commentapi"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

// app holds the global flags and what PersistentPreRunE builds from them.
type app struct {
	configPath string
	envFile    string
	offline    bool
	verbose    bool

	cfg       *models.Config
	fromFile  bool
	logger    *logrus.Logger
	logCloser io.Closer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "commentctl",
		Short: "Offline-capable client for the Precio Verdadero comment board",
		Long: `commentctl posts comments to the Precio Verdadero board and keeps the
ones that could not be delivered in a local queue until the server is
reachable again.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				_ = a.logCloser.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "config.json", "Path to configuration file (JSON or YAML)")
	flags.StringVar(&a.envFile, "env-file", ".env", "Path to a .env file; missing files are ignored")
	flags.BoolVar(&a.offline, "offline", false, "Treat the server as unreachable")
	flags.BoolVar(&a.verbose, "verbose", false, "Enable verbose logging (includes personal data)")

	root.AddCommand(
		newSubmitCmd(a),
		newPendingCmd(a),
		newSyncCmd(a),
		newClearCmd(a),
		newCommentsCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	if err := godotenv.Load(a.envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", a.envFile, err)
	}

	cfg, fromFile, err := loadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg
	a.fromFile = fromFile

	a.logger, a.logCloser = logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Verbose: a.verbose,
		Stderr:  stderr,
	})
	return nil
}

func loadConfig(path string) (*models.Config, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			cfg, err := config.Default()
			return cfg, false, err
		}
		return nil, false, err
	}
	cfg, err := config.LoadConfig(path)
	return cfg, true, err
}

// client is the wired comment client for one command invocation.
type client struct {
	store       offline.Store
	queue       *offline.Queue
	api         *commentapi.Client
	board       *board.Board
	monitor     *connectivity.Monitor
	surface     notify.Surface
	flow        *submission.Flow
	coordinator *syncer.Coordinator
}

func (a *app) openClient(out io.Writer, format board.Format, initial connectivity.State) (*client, error) {
	cc := a.cfg.Client

	store, err := offline.Open(cc.QueueBackend, cc.QueuePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue store: %w", err)
	}

	timeout := time.Duration(cc.RequestTimeoutMs) * time.Millisecond
	api := commentapi.NewClient(cc.APIURL, timeout,
		commentapi.WithLogger(a.logger),
		commentapi.WithCircuitBreaker(circuitbreaker.NewWithLogger("comment-api", 5, 30*time.Second, a.logger)),
	)

	b := board.New(api, out, format, a.logger)
	if tz := a.cfg.Server.TimeZone; tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			a.logger.WithError(err).WithField("time_zone", tz).Warn("Unknown time zone, using local time")
		} else {
			b.SetLocation(loc)
		}
	}

	if a.offline {
		initial = connectivity.Offline
	}
	monitor := connectivity.NewMonitor(initial, a.logger)
	surface := notify.LogSurface{Logger: a.logger}
	queue := offline.NewQueue(store, a.logger)

	return &client{
		store:       store,
		queue:       queue,
		api:         api,
		board:       b,
		monitor:     monitor,
		surface:     surface,
		flow:        submission.NewFlow(queue, api, b, monitor, surface, timeout, a.logger),
		coordinator: syncer.NewCoordinator(queue, api, b, monitor, surface, syncer.FromClientConfig(cc), a.logger),
	}, nil
}

func (c *client) Close() error {
	return c.store.Close()
}

// streamURL is the websocket endpoint on the same host as the JSON API.
func streamURL(apiURL string) string {
	return strings.TrimRight(apiURL, "/") + "/api/stream"
}
