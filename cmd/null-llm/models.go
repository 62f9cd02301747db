package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	allModels bool
	refresh   bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models a provider offers",
	Long:  `List the models of the active provider, or of every usable provider with --all. Results are cached for five minutes.`,
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().BoolVarP(&allModels, "all", "a", false, "query every usable provider")
	modelsCmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "bypass the model cache")
}

func runModels(cmd *cobra.Command, _ []string) error {
	a, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	if !allModels {
		name := a.registry.ActiveProvider()
		models, err := a.registry.ListModels(ctx, name, refresh)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		printModels(name, models)
		return nil
	}

	for listing := range a.registry.ListAllModelsStreaming(ctx, refresh) {
		progress := fmt.Sprintf("[%d/%d]", listing.Completed, listing.Total)
		switch {
		case listing.Err != nil:
			color.Red("%s %s: %v", progress, listing.Provider, listing.Err)
		case len(listing.Models) == 0:
			color.Yellow("%s %s: no models", progress, listing.Provider)
		default:
			color.Blue("%s %s", progress, listing.Provider)
			printModels("", listing.Models)
		}
	}
	return ctx.Err()
}

func printModels(header string, models []string) {
	if header != "" {
		color.Blue("Models for %s:", header)
	}
	sorted := append([]string(nil), models...)
	sort.Strings(sorted)
	fmt.Printf("  %s\n", strings.Join(sorted, "\n  "))
}
