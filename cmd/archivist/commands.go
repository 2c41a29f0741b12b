package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bobby-s-dev/species-archive/internal/services"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <query>",
	Short: "Build a full species entry",
	Long: `Build a full species entry from the generator and every public source.

Progress lines are written to stderr; the finished record is printed to
stdout as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	return withAggregator(func(ctx context.Context, agg *services.Aggregator) error {
		fmt.Fprintln(os.Stderr, titleStyle.Render("Searching the archive for "+query))

		record, err := agg.AggregateSpecies(ctx, query, func(p services.Progress) {
			fmt.Fprintln(os.Stderr, progressStyle.Render(fmt.Sprintf("[%3d%%] %s", p.Percent, p.Message)))
		})

		var nf *services.NotFoundError
		if errors.As(err, &nf) {
			fmt.Fprintln(os.Stderr, errorStyle.Render("The archives are silent on this subject."))
			if nf.Suggestion != "" {
				fmt.Fprintln(os.Stderr, hintStyle.Render("Did you mean "+nf.Suggestion+"?"))
			}
			return err
		}
		if err != nil {
			return err
		}
		return printJSON(record)
	})
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "Suggest a corrected species name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withAggregator(func(ctx context.Context, agg *services.Aggregator) error {
			suggestion, ok := agg.SuggestCorrection(ctx, query)
			if !ok {
				fmt.Println(hintStyle.Render("No suggestion"))
				return nil
			}
			fmt.Println(suggestion)
			return nil
		})
	},
}

var relatedFamily string

var relatedCmd = &cobra.Command{
	Use:   "related <name>",
	Short: "List species related to a name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		return withAggregator(func(ctx context.Context, agg *services.Aggregator) error {
			stubs, err := agg.ListRelated(ctx, name, relatedFamily)
			if err != nil {
				return err
			}
			return printJSON(stubs)
		})
	},
}

var browseCmd = &cobra.Command{
	Use:   "browse <letter>",
	Short: "List species whose common name starts with a letter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAggregator(func(ctx context.Context, agg *services.Aggregator) error {
			stubs, err := agg.ListByLetter(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(stubs)
		})
	},
}

var featuredCmd = &cobra.Command{
	Use:   "featured",
	Short: "Show the featured species",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAggregator(func(ctx context.Context, agg *services.Aggregator) error {
			return printJSON(agg.ListFeatured(ctx))
		})
	},
}

func init() {
	relatedCmd.Flags().StringVar(&relatedFamily, "family", "", "taxonomic family of the species")
}
