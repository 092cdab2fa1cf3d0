package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dgallion1/hrquiz/internal/api"
	"github.com/dgallion1/hrquiz/internal/codeimage"
	"github.com/dgallion1/hrquiz/internal/config"
	"github.com/dgallion1/hrquiz/internal/markup"
	"github.com/dgallion1/hrquiz/internal/pipeline"
	"github.com/dgallion1/hrquiz/internal/quiz"
	"github.com/dgallion1/hrquiz/internal/source"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.Load()

	cmd := &cobra.Command{
		Use:   "hrquiz",
		Short: "Convert human-readable quiz markup to quiz XML",
		Long: `hrquiz converts quizzes written in a lightweight delimiter markup into
multiple-choice question XML ready for import into a learning platform.

Each item is made of a %tags% block, a %question% block holding the question
text followed by +right and -wrong answers, and a %feedback% block. Question
and answer text is Markdown; fenced code blocks are embedded as images.

Text outside any section, such as a stray line between two items, fails the
conversion by default. Pass --strict=false to drop it with a warning instead.

Example:
  hrquiz -i week1.txt -o week1.xml
  hrquiz batch --out-dir xml/ quizzes/*.txt
  hrquiz serve`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("infile")
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = pipeline.OutputPath(in, "")
			}
			if filepath.Clean(in) == filepath.Clean(out) {
				return fmt.Errorf("output %s would overwrite the input", out)
			}

			log, conv, err := setup(cfg)
			if err != nil {
				return err
			}
			if err := conv.ConvertFile(cmd.Context(), in, out); err != nil {
				return err
			}
			log.Info("wrote quiz", "input", in, "output", out)
			return nil
		},
	}

	cmd.Flags().StringP("infile", "i", "", "Input quiz markup file")
	cmd.Flags().StringP("output", "o", "", "Output XML file (default: input name with .xml)")
	cmd.MarkFlagRequired("infile")

	pf := cmd.PersistentFlags()
	pf.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Fail on text outside any section; --strict=false drops it with a warning")
	pf.StringVar(&cfg.ProfilePath, "profile", cfg.ProfilePath, "YAML grading profile")
	pf.StringVar(&cfg.CodeStyle, "style", cfg.CodeStyle, "Syntax highlighting style for code images")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	pf.DurationVar(&cfg.ParseTimeout, "timeout", cfg.ParseTimeout, "Parse timeout per document")
	pf.Int64Var(&cfg.MaxInputBytes, "max-bytes", cfg.MaxInputBytes, "Maximum input size in bytes")

	cmd.AddCommand(batchCmd(&cfg))
	cmd.AddCommand(serveCmd(&cfg))
	return cmd
}

func batchCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [files...]",
		Short: "Convert several quiz files concurrently",
		Long: `Convert several quiz files concurrently. Each input is written next to
itself with an .xml extension, or into --out-dir. Inputs with identical
content are converted once.

Example:
  hrquiz batch --out-dir xml/ week1.txt week2.docx week3.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out-dir")
			workers, _ := cmd.Flags().GetInt("workers")

			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}
			for _, in := range args {
				if !source.IsSupportedExtension(in) {
					return fmt.Errorf("unsupported file type: %s", in)
				}
			}

			log, conv, err := setup(*cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			snaps := pipeline.RunBatch(ctx, conv, args, outDir, workers, log)

			failed := 0
			for _, s := range snaps {
				switch s.Status {
				case pipeline.StatusCompleted:
					fmt.Printf("ok       %s -> %s (%d questions)\n", s.Filename, s.OutputPath, s.Questions)
				case pipeline.StatusDupSkipped:
					fmt.Printf("skipped  %s (same content as job %s)\n", s.Filename, s.DuplicateOf)
				default:
					failed++
					fmt.Printf("failed   %s: %s\n", s.Filename, strings.Join(s.Errors, "; "))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(snaps))
			}
			return nil
		},
	}

	cmd.Flags().String("out-dir", "", "Directory for the XML files")
	cmd.Flags().Int("workers", cfg.BatchWorkers, "Concurrent conversions")
	return cmd
}

func serveCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetString("port")
			if port != "" {
				cfg.Port = port
			}

			log, conv, err := setup(*cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			orch := pipeline.NewOrchestrator(conv, cfg.BatchWorkers, cfg.MaxQueueSize, cfg.JobTTL, log)
			orch.Start(ctx)

			srv := api.NewServer(conv, orch, log, *cfg)
			httpServer := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      srv,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: cfg.ParseTimeout + 30*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// Graceful shutdown.
			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh
				log.Info("shutting down...")

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				httpServer.Shutdown(shutdownCtx)

				orch.Stop()
			}()

			if cfg.APIKey == "" {
				log.Warn("HRQUIZ_API_KEY is not set, API is unauthenticated")
			}
			log.Info("starting hrquiz", "port", cfg.Port, "workers", cfg.BatchWorkers)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("port", "", "Listen port (default: $PORT or 8090)")
	return cmd
}

// setup validates the configuration and wires the logger and converter.
func setup(cfg config.Config) (*slog.Logger, *pipeline.Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := newLogger(cfg)

	profile := quiz.DefaultProfile()
	if cfg.ProfilePath != "" {
		p, err := quiz.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return nil, nil, err
		}
		profile = p
		log.Debug("loaded grading profile", "path", cfg.ProfilePath)
	}

	renderer := markup.NewRenderer(codeimage.New(cfg.CodeStyle))
	builder := quiz.NewBuilder(renderer, profile, cfg.Strict, log)
	conv := pipeline.NewConverter(builder, pipeline.Options{
		MaxInputBytes: cfg.MaxInputBytes,
		ParseTimeout:  cfg.ParseTimeout,
		PDFFallback:   cfg.PDFFallbackPdftotext,
	}, log)
	return log, conv, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
