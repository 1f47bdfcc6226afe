package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/voxtype/voxtype/internal/capture"
	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/metrics"
	"github.com/voxtype/voxtype/internal/overlay"
	"github.com/voxtype/voxtype/internal/server"
	"github.com/voxtype/voxtype/internal/session"
	"github.com/voxtype/voxtype/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voxtype"
	serviceVersion    = "1.0.0"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "voxtype",
	Short: "Push-to-talk dictation from the terminal",
	Long:  "Voxtype records an utterance from the microphone, streams it to a transcription server, and prints the recognized text.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive dictation session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the transcription server is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHealthCheck()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", serviceName, serviceVersion)
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, "path to configuration file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// A local .env can hold VOXTYPE_BASE_URL and VOXTYPE_AUTH_TOKEN so
	// credentials stay out of the config file.
	_ = godotenv.Load()

	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		if strings.Contains(err.Error(), "failed to read config file") {
			cfg = config.Default()
			cfg.ApplyEnv()
			return
		}
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func clientConfig() transcription.Config {
	return transcription.Config{
		BaseURL:       cfg.Transcription.BaseURL,
		AuthToken:     cfg.Transcription.AuthToken,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		HealthTimeout: cfg.Transcription.GetHealthTimeoutDuration(),
	}
}

func runHealthCheck() error {
	clientCfg := clientConfig()
	if !clientCfg.IsConfigured() {
		return fmt.Errorf("transcription server is not configured; set base_url and auth_token")
	}

	logger := initLogger(cfg.Logging)
	client, err := transcription.NewClient(clientCfg, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to create transcription client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !client.HealthCheck(ctx) {
		return fmt.Errorf("transcription server at %s is not reachable", clientCfg.BaseURL)
	}

	fmt.Printf("Transcription server at %s is healthy\n", clientCfg.BaseURL)
	return nil
}

func runInteractive() error {
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", cfgPath),
	)

	appMetrics := metrics.NewMetrics()

	device, err := capture.NewMalgoDevice(cfg.Audio.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}
	defer device.Close()

	recorder := capture.NewRecorder(capture.Config{
		SampleRate: cfg.Audio.SampleRate,
		QueueDepth: cfg.Audio.QueueDepth,
	}, device, logger)

	clientCfg := clientConfig()

	var transcriber session.Transcriber
	var client *transcription.Client
	if clientCfg.IsConfigured() {
		client, err = transcription.NewClient(clientCfg, nil, logger)
		if err != nil {
			return fmt.Errorf("failed to create transcription client: %w", err)
		}
		transcriber = client
	} else {
		// The controller refuses to start a session while unconfigured,
		// so this transcriber is never reached.
		transcriber = unreachableTranscriber{}
		logger.Warn("Transcription server not configured; dictation will prompt for setup")
	}

	statusLine := overlay.NewTerminal(os.Stderr)

	controller, err := session.NewController(session.Config{
		ClientConfig:      clientCfg,
		TranscribeTimeout: cfg.Session.GetTranscribeTimeoutDuration(),
		ScratchDir:        cfg.Session.ScratchDir,
	}, session.Deps{
		Recorder:    recorder,
		Transcriber: transcriber,
		Permissions: terminalPermissions{logger: logger},
		Sink:        stdoutSink{},
		Notifier:    stderrNotifier{},
		Overlay:     statusLine,
		Metrics:     appMetrics,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create session controller: %w", err)
	}

	var httpServer *server.HTTPServer
	if cfg.API.Enabled {
		if client == nil {
			logger.Warn("HTTP API disabled: transcription client not configured")
		} else {
			httpServer = server.NewHTTPServer(cfg.API, logger, cfg, controller, client, appMetrics)
			if err := httpServer.Start(); err != nil {
				return fmt.Errorf("failed to start HTTP API server: %w", err)
			}
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Fprintln(os.Stderr, "Press Enter to start and stop recording, 'c' + Enter to cancel, Ctrl-C to exit.")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			return shutdown(controller, httpServer, logger)
		case line, ok := <-lines:
			if !ok {
				return shutdown(controller, httpServer, logger)
			}
			switch line {
			case "":
				if controller.State() == session.StateRecording {
					controller.Stop()
				} else {
					controller.Start()
				}
			case "c":
				controller.Cancel()
			case "q":
				return shutdown(controller, httpServer, logger)
			}
		}
	}
}

func shutdown(controller *session.Controller, httpServer *server.HTTPServer, logger *slog.Logger) error {
	logger.Info("Starting graceful shutdown...")

	controller.Cancel()

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	stats := controller.GetStats()
	logger.Info("Final session statistics",
		slog.Uint64("sessions_started", stats.SessionsStarted),
		slog.Uint64("sessions_committed", stats.SessionsCommitted),
		slog.Uint64("sessions_cancelled", stats.SessionsCancelled),
		slog.Uint64("sessions_timed_out", stats.SessionsTimedOut),
	)

	logger.Info("Service stopped")
	return nil
}

// stdoutSink prints committed text to stdout, one utterance per line,
// so the output can be piped into other tools.
type stdoutSink struct{}

func (stdoutSink) Commit(text string) {
	fmt.Println(text)
}

// stderrNotifier keeps user-facing notices off the committed-text stream.
type stderrNotifier struct{}

func (stderrNotifier) Notify(message string) {
	fmt.Fprintf(os.Stderr, "\n%s\n", message)
}

// terminalPermissions treats microphone access as granted. On desktop
// terminals there is no permission broker; an inaccessible device
// surfaces as a capture failure instead.
type terminalPermissions struct {
	logger *slog.Logger
}

func (terminalPermissions) HasCapture() bool { return true }

func (p terminalPermissions) RequestCapture() {
	p.logger.Info("Microphone access requested")
}

type unreachableTranscriber struct{}

func (unreachableTranscriber) Transcribe(context.Context, io.Reader, func(string)) (*transcription.Transcript, error) {
	return nil, &transcription.TransportError{Err: fmt.Errorf("transcription server not configured")}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	default:
		output = os.Stderr
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
