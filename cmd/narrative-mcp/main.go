package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prismon/narrative-mcp/pkg/config"
	"github.com/prismon/narrative-mcp/pkg/logger"
	"github.com/prismon/narrative-mcp/pkg/narrative"
	"github.com/prismon/narrative-mcp/pkg/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	log *logrus.Entry

	// Config file path
	configPath string

	// Serve command options
	transport string
	port      int

	// Attributes command options
	page    int
	perPage int
)

func init() {
	log = logger.WithName("cli")
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "narrative-mcp",
		Short: "MCP server for the Narrative data marketplace",
		Long: `narrative-mcp - Model Context Protocol server built with Go.

It exposes Narrative Rosetta Stone attribute search and dataset listing as MCP
tools, and caches their results as resource:/// resources. Datasets can also be
read live through dataset://<id> URIs.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	// serve command
	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		RunE:  runServe,
	}

	serveCmd.Flags().StringVar(&transport, "transport", "", "Transport to serve on: stdio or http (default from config)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Port to listen on with the http transport (default from config)")

	// attributes command
	var attributesCmd = &cobra.Command{
		Use:   "attributes <query>",
		Short: "Search Rosetta Stone attributes",
		Args:  cobra.ExactArgs(1),
		RunE:  runAttributes,
	}

	attributesCmd.Flags().IntVar(&page, "page", 1, "Page number (starts at 1)")
	attributesCmd.Flags().IntVar(&perPage, "per-page", 10, "Results per page (max 100)")

	// datasets command
	var datasetsCmd = &cobra.Command{
		Use:   "datasets",
		Short: "List datasets in the account",
		Args:  cobra.NoArgs,
		RunE:  runDatasets,
	}

	// dataset command
	var datasetCmd = &cobra.Command{
		Use:   "dataset <id>",
		Short: "Fetch one dataset and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runDataset,
	}

	rootCmd.AddCommand(serveCmd, attributesCmd, datasetsCmd, datasetCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies the logging level. It fails
// before anything else is set up when the API settings are missing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logger.ConfigureFromString(cfg.Logging.Level); err != nil {
		log.WithError(err).WithField("level", cfg.Logging.Level).Warn("Invalid log level, keeping default")
	}
	return cfg, nil
}

func newClient(cfg *config.Config) (*narrative.Client, error) {
	return narrative.NewClient(cfg.API.URL, cfg.API.Token,
		narrative.WithTimeout(cfg.API.Timeout()),
		narrative.WithRateLimit(cfg.API.RateLimit),
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if transport != "" {
		cfg.Server.Transport = transport
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"command":   "serve",
		"transport": cfg.Server.Transport,
		"apiURL":    cfg.API.URL,
	}).Info("Starting Narrative MCP server")

	return server.Start(ctx, cfg, server.New(client))
}

func runAttributes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"command": "attributes",
		"query":   args[0],
		"page":    page,
		"perPage": perPage,
	}).Debug("Executing command")

	resp, err := client.FetchAttributes(cmd.Context(), args[0], page, perPage)
	if err != nil {
		return err
	}

	fmt.Printf("Page %d of %d (%d attributes)\n", resp.CurrentPage, resp.TotalPages, resp.TotalRecords)
	for _, attr := range resp.Records {
		fmt.Printf("%-8d %-40s %s\n", attr.ID, attr.Name, attr.DisplayName)
	}
	return nil
}

func runDatasets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	resp, err := client.FetchDatasets(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%d datasets\n", len(resp.Records))
	for _, ds := range resp.Records {
		fmt.Printf("%-12s %s\n", ds.ID, ds.Name)
	}
	return nil
}

func runDataset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	dataset, err := client.FetchDatasetByID(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
