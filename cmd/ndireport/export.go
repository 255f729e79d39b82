package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/nao1215/ndireport/internal/config"
	"github.com/nao1215/ndireport/internal/database"
	ndilog "github.com/nao1215/ndireport/internal/log"
	"github.com/nao1215/ndireport/internal/model"
	"github.com/nao1215/ndireport/internal/ndi"
	"github.com/nao1215/ndireport/internal/pipeline"
	"github.com/nao1215/ndireport/internal/report"
)

// sitePrompt is printed when no --site flag is given.
const sitePrompt = "Enter site name: "

// maxLoggedBody limits the response body attached to a failure log.
const maxLoggedBody = 4096

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the endpoints of a site into a report",
		Long: `Export logs in to the controller, fetches the complete endpoint inventory of
a site and writes it into a report file in the output directory.

The site is read from --site, or asked for interactively. A blank answer uses
site_name from the configuration file, or INPUT_FABRIC_NAME_HERE.

Examples:
  # Export interactively, asking for the site name
  ndireport export

  # Export a site without prompting
  ndireport export --site fabric-1

  # Export as Markdown into ./reports
  ndireport export --site fabric-1 --format markdown --output-dir ./reports

  # Trust a private CA instead of disabling verification
  ndireport export --site fabric-1 --ca-file /etc/ndi/ca.pem

  # Request endpoints in pages of 1000
  ndireport export --site fabric-1 --page-size 1000

Configuration file (.ndireport) example:
  ndi_ip: 10.0.0.1
  domain: local
  username: admin
  site_name: fabric-1
  verify_tls: true

The password is read from the configuration file or NDI_PASSWORD, never from a flag.`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	addExportFlags(cmd)

	return cmd
}

// addExportFlags registers the export flags on cmd. Flags override the
// configuration file and environment only when they are set.
func addExportFlags(cmd *cobra.Command) {
	// Target flags
	cmd.Flags().StringP("site", "s", "",
		"Site (fabric) name to export; prompts when not set")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .ndireport in current or home directory)")

	// Controller flags
	cmd.Flags().String("ndi-ip", "",
		"Controller address, host or https URL (env NDI_IP)")
	cmd.Flags().String("domain", config.DefaultDomain,
		"Login domain (env NDI_DOMAIN)")
	cmd.Flags().StringP("username", "u", "",
		"Login user name (env NDI_USERNAME)")

	// Transport flags
	cmd.Flags().Bool("insecure", false,
		"Skip TLS certificate verification (exposes the credentials to anyone on the path)")
	cmd.Flags().String("ca-file", "",
		"PEM file with CA certificates to trust for the controller")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")
	cmd.Flags().Duration("connect-timeout", config.DefaultConnectTimeout,
		"Timeout for connecting to the controller")
	cmd.Flags().Duration("read-timeout", config.DefaultReadTimeout,
		"Timeout for each response")
	cmd.Flags().Int("page-size", 0,
		"Endpoints per request; 0 fetches all endpoints in one request")

	// Report flags
	cmd.Flags().StringP("output-dir", "o", config.DefaultOutputDir,
		"Directory the report is written to")
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Report format: xlsx, markdown or json")

	// History flags
	cmd.Flags().Bool("history", false,
		"Record the export in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, os.LookupEnv)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	site, err := resolveSite(cmd, cfg)
	if err != nil {
		return err
	}

	// Cancel the run on interrupt
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = runExport(ctx, cfg, site, cmd.OutOrStdout(), logger)
	return err
}

// getBoolFlag retrieves a bool flag from the command or its root.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// buildConfig creates a Config from defaults, the configuration file, the
// environment and the flags that were set, in that order.
func buildConfig(cmd *cobra.Command, lookupEnv func(string) (string, bool)) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, run without a file when none is found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.ApplyEnv(lookupEnv)

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	return cfg, nil
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"ndi-ip":     &cfg.Controller,
		"domain":     &cfg.Domain,
		"username":   &cfg.Username,
		"ca-file":    &cfg.CAFile,
		"proxy":      &cfg.ProxyAddress,
		"output-dir": &cfg.OutputDir,
		"format":     &cfg.Format,
		"db-dir":     &cfg.DBDir,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durations := map[string]*time.Duration{
		"connect-timeout": &cfg.ConnectTimeout,
		"read-timeout":    &cfg.ReadTimeout,
	}
	for name, dst := range durations {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed("page-size") {
		v, err := flags.GetInt("page-size")
		if err != nil {
			return err
		}
		cfg.PageSize = v
	}

	if flags.Changed("insecure") {
		insecure, err := flags.GetBool("insecure")
		if err != nil {
			return err
		}
		cfg.VerifyTLS = !insecure
	}

	if flags.Changed("history") {
		history, err := flags.GetBool("history")
		if err != nil {
			return err
		}
		cfg.History = history
	}

	return nil
}

// setupLogger creates the secure structured logger selected by cfg.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return ndilog.NewSecureLogger(w, ndilog.Options{
		Verbose: cfg.Verbose,
		JSON:    cfg.LogJSON,
	})
}

// resolveSite returns the site to export: the --site flag if set, otherwise
// the answer to the interactive prompt, with the configured fallbacks.
func resolveSite(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if cmd.Flags().Changed("site") {
		site, err := cmd.Flags().GetString("site")
		if err != nil {
			return "", err
		}
		return cfg.ResolveSiteName(site), nil
	}

	answer, err := promptSite(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	return cfg.ResolveSiteName(answer), nil
}

// promptSite asks for the site name and reads one line.
// End of input counts as a blank answer.
func promptSite(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, sitePrompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read site name: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// runExport runs one export of site and prints progress to out.
// A site without endpoints is reported as "No data to process" and is not
// an error.
func runExport(ctx context.Context, cfg *config.Config, site string, out io.Writer, logger *slog.Logger) (*model.ExportRun, error) {
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	client, err := ndi.NewClient(cfg.Controller,
		ndi.WithVerifyTLS(cfg.VerifyTLS),
		ndi.WithCAFile(cfg.CAFile),
		ndi.WithProxy(cfg.ProxyAddress),
		ndi.WithConnectTimeout(cfg.ConnectTimeout),
		ndi.WithReadTimeout(cfg.ReadTimeout),
		ndi.WithPageSize(cfg.PageSize),
		ndi.WithMaxBodySize(cfg.MaxBodySize),
		ndi.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller client: %w", err)
	}

	if !cfg.VerifyTLS {
		logger.Warn("TLS certificate verification is disabled", "controller", client.BaseURL())
	}

	logger.Info("starting export",
		"controller", client.BaseURL(),
		"site", site,
		"format", string(format),
		"pageSize", cfg.PageSize,
	)

	run := model.NewExportRun(site, time.Now())

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithStepHook(progressPrinter(out, run, client.BaseURL(), format)),
	)
	p.AddSteps(
		pipeline.NewLoginStep(client, cfg.Credentials(), pipeline.WithLoginLogger(logger)),
		pipeline.NewFetchStep(client, pipeline.WithFetchLogger(logger)),
		pipeline.NewBuildStep(),
		pipeline.NewWriteStep(
			pipeline.WithOutputDir(cfg.OutputDir),
			pipeline.WithFormat(format),
			pipeline.WithWriteLogger(logger),
		),
	)

	if err := p.Execute(ctx, run); err != nil {
		logFailure(logger, site, err)
		return run, fmt.Errorf("export of site %s failed: %w", site, err)
	}

	if run.NoData {
		fmt.Fprintln(out, "No endpoints found for the given site name")
		fmt.Fprintln(out, "No data to process")
		return run, nil
	}

	fmt.Fprintf(out, "Report has been generated: %s\n", run.ReportFile)
	fmt.Fprintf(out, "Total endpoints processed: %d\n", run.Table.RowCount())

	if cfg.History {
		if err := recordHistory(ctx, cfg.DBDir, run, out); err != nil {
			// The report is already written.
			logger.Warn("failed to record export history", "error", err)
		}
	}

	return run, nil
}

// progressPrinter returns a step hook printing what each step is about to do.
func progressPrinter(out io.Writer, run *model.ExportRun, controller string, format report.Format) func(string) {
	return func(step string) {
		switch step {
		case pipeline.StepLogin:
			fmt.Fprintf(out, "Logging in to %s...\n", controller)
		case pipeline.StepFetch:
			fmt.Fprintf(out, "Fetching all endpoints for site %s...\n", run.SiteName)
		case pipeline.StepBuild:
			fmt.Fprintf(out, "Total endpoints available: %d\n", run.Collection.TotalItemsCount)
			fmt.Fprintf(out, "Processing %d endpoints...\n", run.EntryCount())
		case pipeline.StepWrite:
			fmt.Fprintf(out, "Generating %s report...\n", format)
		}
	}
}

// logFailure logs a failed export with the response status and body when
// the failure carries a response.
func logFailure(logger *slog.Logger, site string, err error) {
	attrs := []any{"site", site, "error", err}

	status, body, ok := ndi.ResponseBody(err)
	if ok {
		attrs = append(attrs, "status", status)
	}
	attrs = append(attrs, "body", truncate(body, maxLoggedBody))

	var transportErr *ndi.TransportError
	if errors.As(err, &transportErr) {
		attrs = append(attrs, "timeout", transportErr.Timeout())
	}

	logger.Error("export failed", attrs...)
}

// truncate shortens s to at most n bytes without splitting a character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

// recordHistory saves the run in the history database and reports whether
// the inventory changed since the previous export of the site.
func recordHistory(ctx context.Context, dbDir string, run *model.ExportRun, out io.Writer) error {
	record, err := database.NewExportRecord(run)
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	previous, err := db.LatestExport(ctx, run.SiteName)
	if err != nil {
		return err
	}
	if _, err := db.SaveExport(ctx, record); err != nil {
		return err
	}

	switch {
	case previous == nil:
		fmt.Fprintln(out, "First recorded export of this site")
	case previous.Digest != record.Digest:
		fmt.Fprintf(out, "Endpoint inventory changed since %s (%d -> %d endpoints)\n",
			previous.Timestamp.Local().Format("2006-01-02 15:04:05"), previous.Entries, record.Entries)
	default:
		fmt.Fprintf(out, "Endpoint inventory unchanged since %s\n",
			previous.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
