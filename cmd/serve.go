package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"focusd/internal/alarm"
	"focusd/internal/api"
	"focusd/internal/bus"
	"focusd/internal/daemon"
	"focusd/internal/idle"
	"focusd/internal/notify"
	"focusd/internal/session"
	"focusd/internal/store"
)

var serveDetach bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the focusd daemon",
	Long: `Run the focusd daemon: the HTTP API, the in-process alarm scheduler,
and the idle watcher. Only one daemon may run per database; a PID file
guards against a second instance.

By default it listens on port 7313. Use --port to change it, --detach
to run in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveDetach {
			return serveDetachRun()
		}
		return serveRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		pf := daemon.NewPIDFile(viper.GetString("pid_path"))
		pid, running := pf.IsRunning()
		if !running {
			ui.Info("No daemon running")
			return nil
		}
		if err := pf.Signal(sigTERM()); err != nil {
			return fmt.Errorf("stop daemon: %w", err)
		}
		ui.Success("Sent shutdown signal to daemon (pid %d)", pid)
		return nil
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 7313, "Port to listen on")
	serveCmd.Flags().BoolVarP(&serveDetach, "detach", "d", false, "Run the daemon in the background")
	_ = viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))

	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

// serveDetachRun re-executes 'focusd serve' detached from the terminal.
func serveDetachRun() error {
	child := exec.Command(os.Args[0], "serve")
	child.Stdin = nil
	child.Stdout = nil
	child.Stderr = nil
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	ui.Success("Daemon started (pid %d)", child.Process.Pid)
	return child.Process.Release()
}

func serveRun() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	pf := daemon.NewPIDFile(viper.GetString("pid_path"))
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	st, err := store.NewSQLiteStore(viper.GetString("db_path"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// The scheduler fires back into the manager, so wire it through a
	// closure over the manager variable assigned just below.
	var m *session.Manager
	sched := alarm.NewTimerScheduler(func(name string) {
		if err := m.HandleAlarm(context.Background(), name); err != nil {
			logger.Warn("alarm handling failed", "alarm", name, "error", err)
		}
	})
	defer sched.Close()

	m = session.NewManager(st, nil, sched, &notify.LogNotifier{Logger: logger}, bus.New(logger), logger)

	opts, err := m.Options(context.Background())
	if err != nil {
		return err
	}

	watcher := idle.NewWatcher(
		idle.UnsupportedChecker{},
		time.Duration(opts.IdleDetectionSeconds)*time.Second,
		time.Duration(viper.GetInt("serve.idle_poll_seconds"))*time.Second,
		func(state idle.State) {
			if err := m.HandleActivity(context.Background(), state); err != nil {
				logger.Warn("activity handling failed", "state", state, "error", err)
			}
		},
	)
	if err := watcher.Start(); err != nil {
		if errors.Is(err, idle.ErrUnsupported) {
			logger.Info("idle detection unavailable on this platform")
		} else {
			return fmt.Errorf("start idle watcher: %w", err)
		}
	}
	defer watcher.Stop()

	// Keep the watcher threshold in sync with the persisted options.
	// Events are published while the manager lock is held, so re-reading
	// the options must happen off the publishing goroutine.
	m.Bus().Subscribe(func(e bus.Event) {
		if e.Kind != bus.OptionsChanged {
			return
		}
		go func() {
			if o, err := m.Options(context.Background()); err == nil {
				watcher.SetThreshold(time.Duration(o.IdleDetectionSeconds) * time.Second)
			}
		}()
	})

	addr := fmt.Sprintf("127.0.0.1:%d", viper.GetInt("serve.port"))
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: api.NewServer(m, logger).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("daemon listening", "addr", addr, "pid", os.Getpid())
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals()...)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}

	return nil
}
