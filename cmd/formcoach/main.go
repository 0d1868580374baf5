package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/app"
	"github.com/ayusman/formcoach/internal/coach"
	"github.com/ayusman/formcoach/internal/config"
	"github.com/ayusman/formcoach/internal/logging"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/server"
	"github.com/ayusman/formcoach/internal/session"
	"github.com/ayusman/formcoach/internal/store"
)

func main() {
	fmt.Println("formcoach - exercise form coach")

	env := flag.String("env", "development", "environment [dev | development | prod | production]")
	configPath := flag.String("config", "", "path for the TOML config file")
	workout := flag.String("workout", "", `start a session reading the pose service, e.g. "Push-Ups:10,Plank:30s"`)
	logFeedback := flag.Bool("log-feedback", false, "also write every feedback message to the log")
	staticDir := flag.String("static", "", "directory with static web files")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ctx, *configPath, *env)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	logCloser := logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogsPath,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogFormatJSON,
	})
	defer logCloser.Close()

	log.Warnf("---->> running in [%s] environment", *env)

	if err := run(ctx, cfg, *workout, *logFeedback, *staticDir); err != nil {
		log.Errorf("formcoach stopped: %s", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, workout string, logFeedback bool, staticDir string) error {
	var exercises []session.Exercise
	if workout != "" {
		var err error
		if exercises, err = parseWorkout(workout); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewManager(cfg.MetricsNamespace, cfg.MetricsSubsystem, reg)

	var st *store.Store
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		var err error
		if st, err = store.New(cfg.DBPath); err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		log.Debugf("using history database: [%s]", cfg.DBPath)
	}

	hooks := coach.NewHookRegistry(cfg.HooksDir)
	if err := hooks.Discover(); err != nil {
		log.WithError(err).Warn("failed to discover coaching hooks")
	}
	for _, h := range hooks.List() {
		log.WithField("hook", h.Manifest.Name).Info("coaching hook registered")
	}

	hub := server.NewEventHub(coach.EventSource, m)
	dispatchers := coach.MultiDispatcher{hub}
	dispatchers = append(dispatchers, hooks.HookDispatchers(cfg.HookTimeout)...)
	if logFeedback {
		dispatchers = append(dispatchers, coach.NewLogDispatcher())
	}

	a := app.New(app.Config{
		Store:      st,
		Dispatcher: dispatchers,
		Metrics:    m,
		Session:    cfg.Session,
	})
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Error("failed to close sessions")
		}
	}()

	srv := server.New(server.Config{
		StaticDir: staticDir,
		App:       a,
		Hub:       hub,
		Gatherer:  reg,
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(cfg.Addr)
	}()

	if len(exercises) > 0 {
		s, err := a.CreateSession(exercises)
		if err != nil {
			return err
		}
		go func() {
			err := a.RunDetector(ctx, s.ID(), pose.NewServiceDetector(cfg.Pose))
			if err != nil {
				log.WithError(err).Error("pose detector stopped")
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// parseWorkout reads "Name[:target],..." where a target is a repetition count
// or a hold duration.
func parseWorkout(arg string) ([]session.Exercise, error) {
	var out []session.Exercise
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, target, _ := strings.Cut(part, ":")
		ex := session.Exercise{Name: strings.TrimSpace(name)}
		if ex.Name == "" {
			return nil, fmt.Errorf("exercise without a name in %q", part)
		}

		target = strings.TrimSpace(target)
		switch {
		case target == "":
		case strings.IndexFunc(target, func(r rune) bool { return r < '0' || r > '9' }) < 0:
			n, err := strconv.ParseUint(target, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid repetition target %q: %w", target, err)
			}
			ex.TargetReps = uint32(n)
		default:
			d, err := time.ParseDuration(target)
			if err != nil {
				return nil, fmt.Errorf("invalid duration target %q: %w", target, err)
			}
			ex.TargetDuration = d
		}
		out = append(out, ex)
	}
	if len(out) == 0 {
		return nil, errors.New("workout has no exercises")
	}
	return out, nil
}
