package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/researchmind/internal/health"
	"github.com/ShayCichocki/researchmind/internal/orchestrator"
	"github.com/ShayCichocki/researchmind/internal/server"
)

var (
	serveAddr       string
	serveNoHistory  bool
	serveLogEvents  bool
	servePurgeAfter time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the orchestrator over HTTP",
	Long: `Start the HTTP API. Runs can be planned, submitted, followed and
cancelled; agents can be listed, reset and taken offline.

Agents can also be reset or taken offline from another shell with
'researchmind agents reset <id>' and 'researchmind agents offline <id>',
which drop signal files into the health signals directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveNoHistory, "no-history", false, "Do not record runs in the history database")
	serveCmd.Flags().BoolVar(&serveLogEvents, "log-events", false, "Log every run event")
	serveCmd.Flags().DurationVar(&servePurgeAfter, "purge-after", 0, "Delete history older than this on startup (0 keeps everything)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := newApp(cfg, appOptions{history: !serveNoHistory, metrics: true, runtimeMetrics: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.history != nil && servePurgeAfter > 0 {
		n, err := a.history.PurgeOldRuns(servePurgeAfter)
		if err != nil {
			log.Printf("[serve] warning: purge history: %v", err)
		} else if n > 0 {
			log.Printf("[serve] purged %d runs older than %s", n, servePurgeAfter)
		}
	}

	watcher, err := health.NewWatcher(cfg.SignalsDir(), a.mgr)
	if err != nil {
		log.Printf("[serve] warning: health signals disabled: %v", err)
	} else {
		defer watcher.Close()
		log.Printf("[serve] watching %s for agent signals", watcher.Dir())
	}
	if p := a.logger.Path(); p != "" {
		log.Printf("[serve] debug log at %s", p)
	}

	srvCfg := server.Config{Addr: cfg.Server.Addr}
	if a.history != nil {
		srvCfg.History = a.history
	}
	if a.metrics != nil {
		srvCfg.Metrics = a.metrics.Handler()
	}
	srv := server.New(a.orch, srvCfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker(a.mgr, a.proxy, cfg.Health.CheckInterval)
	go drainEvents(a.orch.Events(), func(ev orchestrator.OrchestratorEvent) {
		logEvent(a.logger, ev, serveLogEvents)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		checker.Run(gctx)
		return nil
	})
	return g.Wait()
}

// logEvent writes an event to the debug log, and to the standard logger
// for failures or when verbose.
func logEvent(l *orchestrator.DebugLogger, ev orchestrator.OrchestratorEvent, verbose bool) {
	msg := fmt.Sprintf("[%s] run=%s stage=%d task=%s agent=%s capability=%s", ev.Type, ev.RunID, ev.Stage, ev.TaskID, ev.AgentID, ev.Capability)
	if ev.Kind != "" {
		msg += " kind=" + string(ev.Kind)
	}
	if ev.Error != nil {
		msg += " error=" + ev.Error.Error()
	}
	l.Log("%s", msg)

	switch {
	case verbose:
		log.Printf("[serve] %s", msg)
	case ev.Type == orchestrator.EventTaskFailed, ev.Type == orchestrator.EventRunFinished && ev.Kind != "":
		log.Printf("[serve] %s", msg)
	}
}
