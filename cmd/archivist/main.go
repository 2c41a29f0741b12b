// Package main implements the archivist command line client. It runs the same
// aggregation pipeline as the server against the live sources.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bobby-s-dev/species-archive/internal/config"
	"github.com/bobby-s-dev/species-archive/internal/services"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	timeout time.Duration
	verbose bool
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB069")).Bold(true)
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E4572E")).Bold(true)
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F3A712")).Italic(true)
)

var rootCmd = &cobra.Command{
	Use:           "archivist",
	Short:         "Look up species in the living archive",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline for a command")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log source activity to stderr")

	rootCmd.AddCommand(lookupCmd, suggestCmd, relatedCmd, browseCmd, featuredCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// withAggregator builds an aggregator from the environment and runs fn with a
// deadline.
func withAggregator(fn func(ctx context.Context, agg *services.Aggregator) error) error {
	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	agg, err := services.NewAggregator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize aggregator: %w", err)
	}
	defer agg.Close()

	return fn(ctx, agg)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
