// Command scroll-stabilizer captures scroll wheel ticks, suppresses the
// mechanical jitter of worn encoders and forwards the accepted ticks to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/scroll-stabilizer/internal/engine"
	"github.com/sweeney/scroll-stabilizer/internal/logic"
	"github.com/sweeney/scroll-stabilizer/internal/mqtt"
	"github.com/sweeney/scroll-stabilizer/internal/relay"
	"github.com/sweeney/scroll-stabilizer/internal/settings"
	"github.com/sweeney/scroll-stabilizer/internal/status"
	"github.com/sweeney/scroll-stabilizer/internal/term"
	"github.com/sweeney/scroll-stabilizer/internal/web"
	"github.com/sweeney/scroll-stabilizer/internal/wheel"
)

var (
	errShutdown    = errors.New("shutdown requested")
	errCaptureDone = errors.New("capture finished")
)

type options struct {
	configPath        string
	source            string
	replayPath        string
	replaySpeed       float64
	chip              string
	pinA              int
	pinB              int
	edgeDebounce      time.Duration
	broker            string
	clientID          string
	heartbeat         time.Duration
	httpAddr          string
	poll              time.Duration
	publishSuppressed bool
	reverseWheel      bool
	printConfig       bool
	logFile           string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", settings.DefaultPath(), "Settings file (INI)")
	flag.StringVar(&o.source, "source", "gpio", "Tick source: gpio, replay or terminal")
	flag.StringVar(&o.replayPath, "replay", "", "YAML trace to replay (with -source=replay)")
	flag.Float64Var(&o.replaySpeed, "replay-speed", 1, "Replay speed multiplier (0 replays without waiting)")
	flag.StringVar(&o.chip, "chip", wheel.DefaultChip, "GPIO chip for the encoder")
	flag.IntVar(&o.pinA, "pin-a", wheel.DefaultPinA, "BCM pin number for encoder channel A")
	flag.IntVar(&o.pinB, "pin-b", wheel.DefaultPinB, "BCM pin number for encoder channel B")
	flag.DurationVar(&o.edgeDebounce, "edge-debounce", 0, "Kernel debounce on encoder lines (0 to disable)")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address (empty to disable)")
	flag.StringVar(&o.clientID, "client-id", "scroll-stabilizer", "MQTT client ID")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.DurationVar(&o.poll, "poll", 100*time.Millisecond, "Status refresh interval")
	flag.BoolVar(&o.publishSuppressed, "publish-suppressed", false, "Also publish suppressed ticks")
	flag.BoolVar(&o.reverseWheel, "reverse-wheel", false, "Swap wheel directions (terminal source, natural scrolling)")
	flag.BoolVar(&o.printConfig, "print-config", false, "Print the effective settings and exit")
	flag.StringVar(&o.logFile, "log", "", "Log file (terminal source only; default next to the settings file)")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	store, err := settings.Open(o.configPath)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	cfg := store.Config()

	if o.printConfig {
		fmt.Printf("settings: %s\n", store.Path())
		fmt.Printf("block_interval=%v direction_change_threshold=%d enabled=%t\n",
			cfg.TimeThreshold, cfg.DirectionChangeCount, cfg.Enabled)
		return nil
	}

	// The terminal source owns the screen, so logs go to a file.
	if o.source == "terminal" {
		path := o.logFile
		if path == "" {
			path = filepath.Join(filepath.Dir(store.Path()), "scroll-stabilizer.log")
		}
		f, err := tea.LogToFile(path, "")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
	}

	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(o.broker, o.clientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()

	eng := engine.New(cfg)
	tracker := status.NewTracker(time.Now(), status.Config{
		Source:       o.source,
		PollMs:       o.poll.Milliseconds(),
		HeartbeatMs:  o.heartbeat.Milliseconds(),
		Broker:       o.broker,
		HTTPAddr:     o.httpAddr,
		SettingsPath: store.Path(),
	})
	d := &daemon{
		engine:    eng,
		relay:     relay.New(eng, publisher, relay.DefaultQueueSize, o.publishSuppressed),
		store:     store,
		publisher: publisher,
		tracker:   tracker,
		now:       time.Now,
	}

	src, err := newSource(o, d)
	if err != nil {
		return err
	}
	defer src.Close()

	d.publishSystem("STARTUP", "", true)

	log.Printf("started: source=%s interval=%v threshold=%d enabled=%t broker=%s heartbeat=%v",
		o.source, cfg.TimeThreshold, cfg.DirectionChangeCount, cfg.Enabled, o.broker, o.heartbeat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := src.Run(gctx, d.relay.Handle); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		return errCaptureDone
	})

	g.Go(func() error {
		return d.relay.Run(gctx)
	})

	ticker := time.NewTicker(o.poll)
	defer ticker.Stop()
	g.Go(func() error {
		return runLoop(gctx, d, o.heartbeat, ticker.C, sigCh)
	})

	g.Go(func() error {
		// A broken watcher only loses live reload.
		if err := store.Watch(gctx, d.reloadFromFile); err != nil {
			log.Printf("settings watcher: %v", err)
		}
		return nil
	})

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, d, o.poll)
		g.Go(func() error {
			log.Printf("http status server listening on %s", o.httpAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	snap := eng.Snapshot()
	log.Printf("stopped: total=%d blocked=%d", snap.TotalEvents, snap.BlockedEvents)
	if errors.Is(err, errShutdown) || errors.Is(err, errCaptureDone) {
		return nil
	}
	return err
}

func newSource(o options, d *daemon) (wheel.Source, error) {
	switch o.source {
	case "gpio":
		src, err := wheel.NewRealSource(o.chip, o.pinA, o.pinB, o.edgeDebounce)
		if err != nil {
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		return src, nil
	case "replay":
		if o.replayPath == "" {
			return nil, errors.New("-source=replay needs -replay")
		}
		tr, err := wheel.LoadTrace(o.replayPath)
		if err != nil {
			return nil, err
		}
		log.Printf("replaying %q: %d events at %gx", tr.Name, len(tr.Events), o.replaySpeed)
		return wheel.NewReplaySource(tr, o.replaySpeed, time.Now()), nil
	case "terminal":
		src := term.NewSource(d.engine.Snapshot, d.engine.Config, d.ResetCounters)
		src.ReverseWheel = o.reverseWheel
		return src, nil
	}
	return nil, fmt.Errorf("unknown source %q", o.source)
}

// runLoop refreshes the status tracker every tick, publishes heartbeats and
// publishes SHUTDOWN when a signal arrives or the group is cancelled.
func runLoop(ctx context.Context, d *daemon, heartbeat time.Duration, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(d.now())

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			d.publishSystem("SHUTDOWN", signalName(s), true)
			return errShutdown

		case <-ctx.Done():
			reason := "ERROR"
			if errors.Is(context.Cause(ctx), errCaptureDone) {
				reason = "SOURCE_ENDED"
			}
			d.publishSystem("SHUTDOWN", reason, true)
			return nil

		case <-tick:
			t := d.now()
			d.refresh()

			if hbData := hb.Check(t, heartbeat, d.engine.Snapshot()); hbData != nil {
				log.Printf("heartbeat: uptime=%v total=%d blocked=%d status=%q",
					hbData.Uptime, hbData.Snapshot.TotalEvents, hbData.Snapshot.BlockedEvents, hbData.Snapshot.Status)
				d.publishSystem("HEARTBEAT", "", false)
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
