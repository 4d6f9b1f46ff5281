package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"adlib/internal/adlib"
	"adlib/internal/export"
	"adlib/internal/source"
	_ "adlib/internal/sources/bulk"
	_ "adlib/internal/sources/public"
	_ "adlib/internal/sources/resume"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	searchTerm     string
	country        string
	pageLimit      int
	retryLimit     int
	timeout        time.Duration
	minInterval    time.Duration
	usePublicFetch bool
	maxWait        time.Duration
	resumeURL      string
	afterDate      string
	printPublicURL bool
	openPublicURL  bool
	fields         string
	outputFormat   string
	outputFile     string
	proxyURL       string
	showUI         bool
	browserBin     string
	verbose        bool
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	var rootCmd = &cobra.Command{
		Use:     "adlib",
		Short:   "Retrieve ads from the Facebook Ads Library search",
		Version: version,
		Long: `adlib pages through the Ads Library async search endpoint and streams the
results to stdout or a file. With --use-public-fetch it loads the public search
page in a headless browser instead and harvests the JSON the page receives.`,
		Example: `  # Count ads mentioning a term in Tunisia
  adlib -s "medicure.tn" -c TN --format count

  # Save selected fields to CSV
  adlib -s acme -c US,CA -f ad_archive_id,page_name,ad_delivery_start_time -o ads.csv

  # Use the headless browser against the public page
  adlib -s acme -c US --use-public-fetch --format table

  # Resume from a cursor printed by an earlier run, keeping ads from 2024 on
  adlib --resume-url "https://www.facebook.com/ads/library/async/search_ads/?..." --after-date 2024-01-01

  # Print the public search URL only
  adlib -s acme -c US --print-public-url`,
		Args:         cobra.NoArgs,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&searchTerm, "search-term", "s", "", "The term you want to search for")
	rootCmd.Flags().StringVarP(&country, "country", "c", "", "Comma-separated country codes (no spaces)")
	rootCmd.Flags().IntVar(&pageLimit, "page-limit", adlib.DefaultPageLimit, "Records requested per page")
	rootCmd.Flags().IntVar(&retryLimit, "retry-limit", adlib.DefaultRetryLimit, "Attempts per page before the traversal is abandoned")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", adlib.DefaultTimeout, "Per-request HTTP timeout")
	rootCmd.Flags().DurationVar(&minInterval, "min-interval", 0, "Minimum pause between page requests")
	rootCmd.Flags().BoolVar(&usePublicFetch, "use-public-fetch", false, "Fetch from the public page with a headless browser")
	rootCmd.Flags().DurationVar(&maxWait, "max-wait", adlib.DefaultMaxWait, "Browser navigation and network idle timeout")
	rootCmd.Flags().StringVar(&resumeURL, "resume-url", "", "Continue a traversal from a saved cursor URL")
	rootCmd.Flags().StringVar(&afterDate, "after-date", "", "With --resume-url, keep ads delivered on or after this date (YYYY-MM-DD)")
	rootCmd.Flags().BoolVar(&printPublicURL, "print-public-url", false, "Print the public search URL and exit")
	rootCmd.Flags().BoolVar(&openPublicURL, "open-public-url", false, "Open the public search URL in the default browser and exit")
	rootCmd.Flags().StringVarP(&fields, "fields", "f", "", "Comma-separated fields for csv and table output")
	rootCmd.Flags().StringVar(&outputFormat, "format", "", "Output format (json, csv, table, count), inferred from --output when empty")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path")
	rootCmd.Flags().StringVarP(&proxyURL, "proxy", "p", os.Getenv("ADLIB_PROXY"), "Proxy URL, defaults to ADLIB_PROXY env var")
	rootCmd.Flags().BoolVar(&showUI, "showui", false, "Show browser UI (disable headless mode)")
	rootCmd.Flags().StringVar(&browserBin, "browser-bin", os.Getenv("ADLIB_BROWSER_BIN"), "Browser executable, defaults to ADLIB_BROWSER_BIN env var")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := newLogger(verbose)

	if outputFormat == "" {
		outputFormat = inferFormatFromExtension(outputFile)
	}
	fieldList := splitList(fields)
	if err := export.Validate(outputFormat, fieldList); err != nil {
		return err
	}

	if err := checkResumeFlags(resumeURL, afterDate); err != nil {
		return err
	}

	spec, err := buildSpec()
	if err != nil {
		return err
	}

	if printPublicURL || openPublicURL {
		if len(spec.Countries) == 0 {
			return fmt.Errorf("--country is required to build the public URL")
		}
		publicURL := spec.PublicURL()
		if printPublicURL {
			fmt.Println(publicURL)
		}
		if openPublicURL {
			launcher.Open(publicURL)
		}
		return nil
	}

	name := "bulk"
	switch {
	case resumeURL != "":
		name = "resume"
	case usePublicFetch:
		name = "public"
	}
	if name != "resume" && len(spec.Countries) == 0 {
		return fmt.Errorf("--country is required")
	}
	src, ok := source.Get(name)
	if !ok {
		return fmt.Errorf("unknown source: %s", name)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := source.Options{
		Spec:        spec,
		Timeout:     timeout,
		MinInterval: minInterval,
		MaxWait:     maxWait,
		ProxyURL:    proxyURL,
		ShowUI:      showUI,
		BrowserBin:  browserBin,
		ResumeURL:   resumeURL,
		AfterDate:   afterDate,
		Logger:      logger,
	}
	stream, err := src.Stream(ctx, opts)
	if err != nil {
		if errors.Is(err, adlib.ErrBrowserUnavailable) {
			return fmt.Errorf("public-page fetching needs Chrome or Chromium: %w", err)
		}
		return fmt.Errorf("failed to start %s source: %w", name, err)
	}

	var out io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, err := export.New(outputFormat, out, fieldList)
	if err != nil {
		return err
	}

	stats, err := export.Drain(stream, w)
	if err != nil {
		return err
	}

	logger.Info("traversal finished",
		"source", name,
		"reason", stream.Reason(),
		"batches", stats.Batches,
		"records", stats.Records,
	)
	if outputFile != "" {
		fmt.Fprintf(os.Stderr, "Output written to: %s\n", outputFile)
	}
	return nil
}

// checkResumeFlags rejects a date filter that would have nothing to filter
func checkResumeFlags(resumeURL, afterDate string) error {
	if afterDate != "" && resumeURL == "" {
		return fmt.Errorf("--after-date requires --resume-url")
	}
	return nil
}

func buildSpec() (adlib.SearchSpec, error) {
	countries := splitList(country)
	if len(countries) == 0 {
		// Resuming needs no search context; the cursor carries it.
		return adlib.SearchSpec{Term: searchTerm, PageLimit: pageLimit, RetryLimit: retryLimit}, nil
	}
	return adlib.NewSearchSpec(searchTerm, countries, pageLimit, retryLimit)
}

func newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "adlib",
		ReportTimestamp: true,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// splitList splits a comma-separated flag value, dropping empty items
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// inferFormatFromExtension infers output format from file extension
func inferFormatFromExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return "csv"
	case ".txt":
		return "table"
	default:
		return "json"
	}
}
