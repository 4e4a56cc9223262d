package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/v0xg/bddprobe/internal/cache"
	"github.com/v0xg/bddprobe/internal/detect"
	"github.com/v0xg/bddprobe/internal/driver"
	"github.com/v0xg/bddprobe/internal/featurefile"
	"github.com/v0xg/bddprobe/internal/gherkin"
	"github.com/v0xg/bddprobe/internal/logging"
	"github.com/v0xg/bddprobe/internal/server"
)

var (
	output      string
	provider    string
	model       string
	noHeadless  bool
	noHover     bool
	noPopups    bool
	noEvidence  bool
	quick       bool
	maxParallel int
	timeout     time.Duration
	verbose     bool
	profile     string
	addr        string
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "bddprobe <url>",
		Short: "Probe a web page's interactive behavior and generate BDD feature files",
		Long: `bddprobe opens a page in a headless browser, discovers which elements
react to hover and click by actually exercising them, and turns the
discovered behavior into a Gherkin feature file plus a JSON report.

Example:
  bddprobe "https://myapp.com" -o features --provider claude`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	rootCmd.Flags().StringVarP(&output, "output", "o", "features", "Output directory")
	rootCmd.Flags().StringVar(&provider, "provider", "", "AI provider: claude, openai, none (default: from env or none)")
	rootCmd.Flags().StringVar(&model, "model", "", "Specific model override")
	rootCmd.Flags().BoolVar(&noHeadless, "no-headless", false, "Show the browser window")
	rootCmd.Flags().BoolVar(&noHover, "no-hover", false, "Skip hover interaction analysis")
	rootCmd.Flags().BoolVar(&noPopups, "no-popup", false, "Skip popup interaction analysis")
	rootCmd.Flags().BoolVar(&noEvidence, "no-evidence", false, "Skip popup evidence screenshots")
	rootCmd.Flags().BoolVar(&quick, "quick", false, "Classification-only scan, no interaction testing")
	rootCmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Override simulation parallelism (0 = per-action defaults)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "Overall analysis deadline")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	rootCmd.Flags().StringVar(&profile, "profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analyzer as an HTTP service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":8420", "Listen address")
	serveCmd.Flags().StringVarP(&output, "output", "o", "features", "Directory for persisted feature files")
	serveCmd.Flags().StringVar(&provider, "provider", "", "AI provider: claude, openai, none (default: from env or none)")
	serveCmd.Flags().StringVar(&model, "model", "", "Specific model override")
	serveCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
	serveCmd.Flags().StringVar(&profile, "profile", "", "Chrome/Chromium profile directory")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func selectedProvider() string {
	if provider != "" {
		return provider
	}
	if env := os.Getenv("BDDPROBE_DEFAULT_PROVIDER"); env != "" {
		return env
	}
	return "none"
}

func engineOptions() detect.Options {
	opts := detect.DefaultOptions()
	opts.IncludeHover = !noHover
	opts.IncludePopups = !noPopups
	opts.CaptureEvidence = !noEvidence
	if maxParallel > 0 {
		opts.MaxParallelHovers = maxParallel
		opts.MaxParallelClicks = maxParallel
	}
	return opts
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	url := args[0]
	log := logging.New(verbose)
	defer log.Sync()

	// Step 1: Launch the browser
	fmt.Printf("→ Launching browser... ")
	drv, err := driver.Launch(driver.Options{
		Headless:   !noHeadless,
		ProfileDir: profile,
	})
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("browser launch failed: %w", err)
	}
	defer drv.Close()
	fmt.Println("done")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	engine := detect.New(drv, engineOptions(), log)

	if quick {
		fmt.Printf("→ Quick-scanning %s... ", url)
		result, err := engine.QuickScan(ctx, url)
		if err != nil {
			fmt.Println("failed")
			return fmt.Errorf("quick scan failed: %w", err)
		}
		fmt.Println("done")
		fmt.Printf("  Hoverable:      %d\n", len(result.Hoverable))
		fmt.Printf("  Clickable:      %d\n", len(result.Clickable))
		fmt.Printf("  Popup triggers: %d\n", len(result.PopupTriggers))
		fmt.Printf("  Nav links:      %d\n", len(result.Navigation))
		return nil
	}

	// Step 2: Analyze the page
	fmt.Printf("→ Analyzing %s... ", url)
	analysis, err := engine.Analyze(ctx, url)
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("analysis failed: %w", err)
	}
	fmt.Printf("done (%d hover, %d popup interactions)\n", len(analysis.Hover), len(analysis.Popups))
	logInteractions(analysis)

	// Step 3: Generate the feature
	name := selectedProvider()
	fmt.Printf("→ Generating feature via %s... ", name)
	aiProvider, err := gherkin.NewProvider(name, model)
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("AI provider init failed: %w", err)
	}
	generator := gherkin.NewGenerator(aiProvider, cache.New[string](32), log)
	feature, err := generator.Generate(ctx, analysis)
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("feature generation failed: %w", err)
	}
	fmt.Println("done")

	// Step 4: Write artifacts
	fmt.Printf("→ Writing output to %s... ", output)
	writer := &featurefile.Writer{Dir: output}
	result, err := writer.Write(analysis, feature)
	if err != nil {
		fmt.Println("failed")
		return fmt.Errorf("write failed: %w", err)
	}
	fmt.Println("done")

	fmt.Printf("✓ Saved %s and %s", result.FeaturePath, result.ReportPath)
	if len(result.EvidencePath) > 0 {
		fmt.Printf(" (+%d evidence screenshots)", len(result.EvidencePath))
	}
	fmt.Println()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.New(verbose)
	defer log.Sync()

	drv, err := driver.Launch(driver.Options{
		Headless:   true,
		ProfileDir: profile,
	})
	if err != nil {
		return fmt.Errorf("browser launch failed: %w", err)
	}
	defer drv.Close()

	aiProvider, err := gherkin.NewProvider(selectedProvider(), model)
	if err != nil {
		return fmt.Errorf("AI provider init failed: %w", err)
	}

	engine := detect.New(drv, engineOptions(), log)
	generator := gherkin.NewGenerator(aiProvider, cache.New[string](64), log)
	srv := server.New(engine, generator, output, log)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("✓ Listening on %s\n", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// logInteractions prints the discovered interactions
func logInteractions(analysis *detect.PageAnalysis) {
	if !verbose {
		return
	}
	for i, o := range analysis.Hover {
		fmt.Printf("  [h%d] %s → %d revealed\n", i+1, o.Trigger.Text, len(o.Revealed))
	}
	for i, o := range analysis.Popups {
		title := o.PopupTitle
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  [p%d] %s → %s\n", i+1, o.Trigger.Text, title)
	}
}
