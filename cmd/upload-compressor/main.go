package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"upload-compressor-go/internal/batch"
	"upload-compressor-go/internal/compressor"
	"upload-compressor-go/internal/config"
	"upload-compressor-go/internal/encoding"
	"upload-compressor-go/internal/logger"
	"upload-compressor-go/internal/metadata"
	"upload-compressor-go/internal/raster"
	"upload-compressor-go/internal/statistics"
	"upload-compressor-go/internal/upload"
	"upload-compressor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	presetName string
	outDir     string
	noWebP     bool
	workers    int
	verbose    bool
	quiet      bool
	port       int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "upload-compressor",
	Short: "Shrink images to fit an upload size budget",
	Long: `upload-compressor re-encodes images so they fit a byte budget and a
maximum long edge before upload.

Features:
- Decodes JPEG, PNG, GIF, BMP and WebP, honouring EXIF orientation
- Downscales to the preset's long edge, never upscales
- Emits WebP when the build supports it, JPEG otherwise
- Steps quality down, then dimensions, until the budget is met
- Returns the smallest attempt when the budget cannot be met
- HTTP API with live progress over WebSocket`,
	SilenceUsage: true,
}

// compressCmd compresses files from disk with a preset.
var compressCmd = &cobra.Command{
	Use:   "compress [files or directories...]",
	Short: "Compress image files with a preset",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), args)
	},
}

// inspectCmd shows how a file would be decoded and planned.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show format, dimensions, orientation and planned output size of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

// presetsCmd lists the configured presets.
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List configured compression presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPresets()
	},
}

// serveCmd starts the HTTP API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP compression API",
	Long: `Starts an HTTP server exposing the compressor.

  POST /api/compress/{preset}   multipart field "file", optional "session"
  GET  /api/presets             configured presets
  GET  /api/status              in-flight sessions and counters
  GET  /api/statistics          aggregated statistics
  GET  /ws?session=ID           progress events for one session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	compressCmd.Flags().StringVar(&presetName, "preset", compressor.PresetGallery, "preset to compress with")
	compressCmd.Flags().StringVar(&outDir, "out", ".", "directory for compressed files")
	compressCmd.Flags().BoolVar(&noWebP, "no-webp", false, "always emit JPEG")
	compressCmd.Flags().IntVar(&workers, "workers", 0, "concurrent sessions (default from config)")

	serveCmd.Flags().IntVar(&port, "port", 0, "port to run web server on (default from config)")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(serveCmd)
}

// runCompress compresses every file with one preset and writes the results to outDir.
func runCompress(ctx context.Context, paths []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if noWebP {
		cfg.Compression.PreferWebP = false
	}
	if workers > 0 {
		cfg.Performance.WorkerThreads = workers
	}

	log := setupLogger(cfg)

	preset, err := compressor.LookupPreset(cfg.CompressorPresets(), presetName)
	if err != nil {
		return err
	}
	preflight, err := cfg.Preflight(preset.Name)
	if err != nil {
		return err
	}

	c, err := newCompressor(cfg, log)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	stats := statistics.NewStatistics()
	files, err := batch.DiscoverFiles(paths, log)
	if err != nil {
		return err
	}
	items, err := batch.LoadFiles(files, preset.Constraints())
	if err != nil {
		return err
	}

	// pre-flight rejects are reported but do not stop the batch
	accepted := items[:0]
	for _, item := range items {
		if _, err := preflight.Check(item.Data); err != nil {
			stats.RecordRejected(item.Name, err)
			logger.WithFile(log, item.Name).WithError(err).Warn("Skipping file")
			continue
		}
		accepted = append(accepted, item)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := batch.NewRunner(c, cfg.Performance.WorkerThreads, log)
	for range accepted {
		stats.IncrementSessionsStarted()
	}
	results := runner.Run(ctx, accepted, func(index, percent int) {
		if !quiet && !verbose {
			fmt.Fprintf(os.Stderr, "\r%-40s %3d%%", filepath.Base(accepted[index].Name), percent)
			if percent == 100 {
				fmt.Fprintln(os.Stderr)
			}
		}
	})

	var failed int
	for _, r := range results {
		if r.Error != nil {
			failed++
			stats.RecordFailure(r.Name, r.Error)
			logger.WithFile(log, r.Name).WithError(r.Error).Error("Compression failed")
			continue
		}
		stats.RecordResult(r.Result)

		target, err := batch.WriteOutput(outDir, r.Name, r.Result)
		if err != nil {
			failed++
			stats.AddError(r.Name, "write", err.Error())
			logger.WithFile(log, r.Name).WithError(err).Error("Failed to write output")
			continue
		}

		if !quiet {
			line := fmt.Sprintf("%s -> %s", r.Name, target)
			if r.Result.ShouldAnnounceSavings() {
				line += " (" + r.Result.SavingsMessage() + ")"
			}
			if !r.Result.BudgetMet {
				line += " [over budget]"
			}
			fmt.Println(line)
		}
	}

	stats.Finalize()
	if !quiet {
		fmt.Println("\n" + stats.GetSummary())
		fmt.Println(stats.GetFormatBreakdown())
		if failed > 0 {
			fmt.Println(stats.GetErrorSummary())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

// runInspect prints what the decoder and planner make of a file.
func runInspect(filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	fmt.Printf("File:        %s\n", filePath)
	fmt.Printf("Size:        %s\n", statistics.FormatBytes(int64(len(data))))
	fmt.Printf("MIME:        %s\n", upload.DetectMIME(data))

	img, err := raster.NewDecoder(cfg.Compression.MaxPixels).Decode(data)
	if err != nil {
		fmt.Printf("Decode:      %v\n", err)
		return nil
	}
	fmt.Printf("Format:      %s\n", img.SourceFormat)
	fmt.Printf("Dimensions:  %dx%d\n", img.Width, img.Height)
	if img.Orientation.SwapsDimensions() {
		fmt.Printf("Stored as:   %dx%d (%s)\n", img.Height, img.Width, img.Orientation)
	}

	inspector, err := metadata.NewInspector(cfg.Metadata.Backend, log)
	if err != nil {
		return err
	}
	info, err := inspector.Inspect(filePath)
	if err != nil {
		fmt.Printf("Metadata:    unavailable (%v)\n", err)
	} else {
		fmt.Printf("Orientation: %s\n", info.Orientation)
		if info.Make != "" || info.Model != "" {
			fmt.Printf("Camera:      %s %s\n", info.Make, info.Model)
		}
		if info.DateTime != nil {
			fmt.Printf("Taken:       %s\n", info.DateTime.Format("2006-01-02 15:04:05"))
		}
	}

	presets := cfg.CompressorPresets()
	for _, name := range sortedPresetNames(presets) {
		p := presets[name]
		w, h := compressor.PlanDimensions(img.Width, img.Height, p.MaxLongEdgePixels)
		fmt.Printf("Preset %-8s %dx%d, budget %s\n", name+":", w, h, statistics.FormatBytes(p.Constraints().TargetSizeBytes))
	}

	caps := encoding.DetectCapabilities()
	fmt.Printf("Output:      %s\n", encoding.SelectFormat(caps, cfg.Compression.PreferWebP))
	return nil
}

// runPresets lists the configured presets.
func runPresets() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	presets := cfg.CompressorPresets()
	for _, name := range sortedPresetNames(presets) {
		p := presets[name]
		fmt.Printf("%-10s max %s, long edge %dpx, initial quality %.2f, uploads up to %.0f MB\n",
			name,
			statistics.FormatBytes(p.Constraints().TargetSizeBytes),
			p.MaxLongEdgePixels,
			p.InitialQuality,
			cfg.Presets[name].MaxUploadMB,
		)
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	log := setupLogger(cfg)
	c, err := newCompressor(cfg, log)
	if err != nil {
		return err
	}
	server := web.NewServer(cfg, log, c, statistics.NewStatistics())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("Upload compressor API listening on http://localhost:%d (output %s)\n", cfg.Server.Port, c.Format())
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

func newCompressor(cfg *config.Config, log *logrus.Logger) (*compressor.DefaultCompressor, error) {
	opts := cfg.CompressorOptions()
	opts.Logger = log
	c, err := compressor.NewDefaultCompressor(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	log.WithField("format", c.Format()).Debug("Output format negotiated")
	return c, nil
}

func sortedPresetNames(presets map[string]compressor.Preset) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    verbose,
		Output:     os.Stderr,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
