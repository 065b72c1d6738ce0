// Command stomplogd is the impact-noise monitoring server. It reads audio
// buffers from a configured capture source, runs them through the analysis
// pipeline and publishes classified impacts over WebSocket, alongside a
// small HTTP surface for status, health and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stomplog/stomplog/internal/analysis"
	"github.com/stomplog/stomplog/internal/config"
	"github.com/stomplog/stomplog/internal/health"
	"github.com/stomplog/stomplog/internal/observe"
	"github.com/stomplog/stomplog/internal/session"
	"github.com/stomplog/stomplog/internal/stream"
)

// version is stamped at build time via -ldflags.
var version = "dev"

const defaultListenAddr = ":8080"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "stomplog.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "stomplogd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "stomplogd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so config reloads can adjust it without
	// swapping the handler.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := newLogger(level)
	slog.SetDefault(logger)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}

	slog.Info("stomplogd starting",
		"version", version,
		"config", *configPath,
		"listen_addr", addr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Analysis pipeline wiring ──────────────────────────────────────────────
	actx := analysis.NewAnalysisContext(cfg.Sensitivity.AnalysisConfig())
	hub := stream.NewHub(logger)

	manager := session.NewManager(session.ManagerConfig{
		Classifier: cfg.Classifier.AnalysisConfig(),
		Detector:   cfg.Detection.DetectorConfig(),
		Context:    actx,
		Metrics:    metrics,
		Sinks:      []session.Sink{hub},
		Logger:     logger,
	})

	// ── Capture session (optional) ────────────────────────────────────────────
	if cfg.Audio.Source != "" {
		src, err := config.Sources.Create(cfg.Audio)
		if err != nil {
			slog.Error("failed to open capture source", "source", cfg.Audio.Source, "err", err)
			return 1
		}
		if err := manager.Start(ctx, src, cfg.Audio.Source); err != nil {
			slog.Error("failed to start session", "err", err)
			return 1
		}
	} else {
		slog.Info("no audio source configured, starting without a session")
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyReload(config.Diff(old, new), level, actx)
	})
	if err != nil {
		// Load succeeded moments ago, so this is unexpected but not fatal.
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP surface ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /events", hub)
	mux.HandleFunc("GET /status", statusHandler(manager))
	health.New(health.Checker{
		Name: "capture",
		Check: func(context.Context) error {
			if cfg.Audio.Source != "" && !manager.IsActive() {
				return errors.New("no active capture session")
			}
			return nil
		},
	}).Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	slog.Info("server ready — press Ctrl+C to shut down")

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		slog.Error("http server error", "err", err)
		exitCode = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down…")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	if manager.IsActive() {
		if err := manager.Stop(shutdownCtx); err != nil {
			slog.Warn("session stop error", "err", err)
		}
	}
	hub.Close()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return exitCode
}

// applyReload applies the hot-reloadable parts of a config change to the
// running process. Sections that cannot be changed live were already
// flagged by the watcher's reload log line.
func applyReload(d config.ConfigDiff, level *slog.LevelVar, actx *analysis.AnalysisContext) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level updated", "log_level", d.NewLogLevel)
	}
	if d.SensitivityChanged {
		actx.Settings.SetSensitivityOffset(d.NewSensitivity.OffsetDB)
		actx.Settings.SetCalibrationOffset(d.NewSensitivity.CalibrationDB)
		applied := actx.Settings.Snapshot()
		slog.Info("sensitivity updated",
			"offset_db", applied.OffsetDB,
			"calibration_db", applied.CalibrationDB,
		)
	}
	if d.RestartRequired {
		slog.Warn("audio, detection or classifier settings changed; restart to apply")
	}
}

// ── Status endpoint ───────────────────────────────────────────────────────────

type statusResponse struct {
	Active      bool              `json:"active"`
	Analyzing   bool              `json:"analyzing"`
	Session     *sessionStatus    `json:"session,omitempty"`
	Ambient     ambientStatus     `json:"ambient"`
	Sensitivity sensitivityStatus `json:"sensitivity"`
}

type sessionStatus struct {
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
}

type ambientStatus struct {
	LevelDB    float64 `json:"level_db"`
	Calibrated bool    `json:"calibrated"`
	Readings   int     `json:"readings"`
}

type sensitivityStatus struct {
	OffsetDB      float64 `json:"offset_db"`
	CalibrationDB float64 `json:"calibration_db"`
}

// statusHandler serves a JSON snapshot of the manager, ambient estimate and
// runtime sensitivity settings.
func statusHandler(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := manager.Status()

		resp := statusResponse{
			Active:    st.Active,
			Analyzing: st.Analyzing,
			Ambient: ambientStatus{
				LevelDB:    st.Ambient.LevelDB,
				Calibrated: st.Ambient.Calibrated,
				Readings:   st.Ambient.Readings,
			},
			Sensitivity: sensitivityStatus{
				OffsetDB:      st.Sensitivity.OffsetDB,
				CalibrationDB: st.Sensitivity.CalibrationDB,
			},
		}
		if st.Active {
			resp.Session = &sessionStatus{
				SessionID: st.Info.SessionID,
				Source:    st.Info.Source,
				StartedAt: st.Info.StartedAt,
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Warn("status encode error", "err", err)
		}
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
