package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/scannote/scannote"
	"github.com/scannote/scannote/internal/cache"
	"github.com/scannote/scannote/internal/config"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// parseLogLevel parses the LOG_LEVEL environment variable. Defaults to
// WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	logLevelStr := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	switch logLevelStr {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	return logger
}

func main() {
	// A missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	logger := newLogger()

	cmd := &cli.Command{
		Name:    "scannote",
		Usage:   "Extract structured notes from scanned document images",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a YAML configuration file",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit the full result as JSON instead of plain text",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "Extract text from one or more page images (or a PDF)",
				ArgsUsage: "<image|pdf> [image ...]",
				Flags: append(requestFlags(),
					&cli.BoolFlag{
						Name:  "page-separators",
						Usage: "Insert page markers between pages in batch output",
					},
				),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					svc, err := buildService(cmd, logger)
					if err != nil {
						return err
					}
					refs := cmd.Args().Slice()
					if len(refs) == 0 {
						return fmt.Errorf("at least one image reference is required")
					}
					opts := requestOptions(cmd)
					opts.PageSeparators = cmd.Bool("page-separators")

					var result *scannote.Result
					if len(refs) == 1 {
						result, err = svc.ExtractText(ctx, refs[0], opts)
					} else {
						result, err = svc.ExtractTextBatch(ctx, refs, opts)
					}
					if err != nil {
						return err
					}
					if result == nil {
						color.Yellow("No text detected.")
						return nil
					}
					return printResult(cmd, result)
				},
			},
			{
				Name:      "compose",
				Usage:     "Compose a structured note from page images in one model call",
				ArgsUsage: "<image|pdf> [image ...]",
				Flags:     requestFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					svc, err := buildService(cmd, logger)
					if err != nil {
						return err
					}
					refs := cmd.Args().Slice()
					if len(refs) == 0 {
						return fmt.Errorf("at least one image reference is required")
					}
					opts := requestOptions(cmd)
					result, err := svc.ComposeStructuredNote(ctx, refs, scannote.Tone(cmd.String("tone")), opts)
					if err != nil {
						return err
					}
					return printResult(cmd, result)
				},
			},
			{
				Name:  "cost",
				Usage: "Estimate provider spend for a document without processing it",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "pages", Value: 1, Usage: "Number of page images"},
					&cli.IntFlag{Name: "text-length", Value: 2000, Usage: "Average extracted text length per page"},
					&cli.StringFlag{Name: "method", Value: string(scannote.DecisionOCROnly), Usage: "Processing method to price"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					breakdown := scannote.EstimateCost(
						int(cmd.Int("pages")),
						int(cmd.Int("text-length")),
						scannote.Decision(cmd.String("method")),
					)
					return printJSON(breakdown)
				},
			},
			{
				Name:  "health",
				Usage: "Report provider configuration and readiness",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					if err := cfg.Validate(); err != nil {
						return fmt.Errorf("configuration is not usable: %w", err)
					}
					svc, err := scannote.New(cfg, logger)
					if err != nil {
						return err
					}
					return printJSON(struct {
						Health scannote.Health `json:"health"`
						Cache  cache.Stats     `json:"cache"`
					}{svc.Health(), svc.CacheStats()})
				},
			},
			{
				Name:  "config-show",
				Usage: "Print the effective configuration and exit",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					redacted := *cfg
					if redacted.OCR.APIKey != "" {
						redacted.OCR.APIKey = "***"
					}
					if redacted.VLM.APIKey != "" {
						redacted.VLM.APIKey = "***"
					}
					return printJSON(redacted)
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "tone",
			Value: string(scannote.ToneProfessional),
			Usage: "Output tone: professional, casual or simplified",
		},
		&cli.Float64Flag{
			Name:  "threshold",
			Usage: "OCR confidence threshold in [0,1]; 0 uses the default",
		},
		&cli.BoolFlag{
			Name:  "no-fallback",
			Usage: "Fail instead of escalating to the multimodal provider",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Bypass the response cache for this request",
		},
		&cli.BoolFlag{
			Name:  "preserve-layout",
			Usage: "Ask the multimodal provider to keep the page layout",
		},
		&cli.BoolFlag{
			Name:  "tables",
			Usage: "Extract tables as markdown tables",
		},
		&cli.BoolFlag{
			Name:  "handwriting",
			Usage: "Enable handwriting enhancement so handwritten content does not force escalation",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Overall per-request timeout (for example 90s)",
		},
	}
}

func requestOptions(cmd *cli.Command) scannote.Options {
	opts := scannote.Options{
		Tone:               scannote.Tone(cmd.String("tone")),
		QualityThreshold:   cmd.Float64("threshold"),
		PreserveLayout:     cmd.Bool("preserve-layout"),
		ExtractTables:      cmd.Bool("tables"),
		EnhanceHandwriting: cmd.Bool("handwriting"),
		Timeout:            cmd.Duration("timeout"),
	}
	if cmd.Bool("no-fallback") {
		allow := false
		opts.AllowFallback = &allow
	}
	if cmd.Bool("no-cache") {
		enabled := false
		opts.CacheEnabled = &enabled
	}
	return opts
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Load()
	if path := cmd.String("config"); path != "" {
		var err error
		cfg, err = config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	return cfg, nil
}

func buildService(cmd *cli.Command, logger *logrus.Logger) (*scannote.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return scannote.New(cfg, logger)
}

func printResult(cmd *cli.Command, result *scannote.Result) error {
	if cmd.Bool("json") {
		return printJSON(result)
	}

	titleColour := color.New(color.FgCyan, color.Bold)
	_, _ = titleColour.Printf("# %s\n\n", result.Title)
	fmt.Println(result.Text)

	meta := result.Metadata
	dim := color.New(color.Faint)
	_, _ = dim.Printf("\n[%s | %d page(s) | confidence %.2f | %s]\n",
		meta.Method, meta.PageCount, result.Confidence, meta.ProcessingTime.Round(time.Millisecond))
	if meta.FallbackReason != "" {
		_, _ = dim.Printf("[fallback: %s]\n", meta.FallbackReason)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
