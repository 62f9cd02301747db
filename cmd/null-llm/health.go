package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/starhound/null-llm-go/registry"
)

var checkAll bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check provider connectivity",
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().BoolVarP(&checkAll, "all", "a", false, "check every usable provider")
}

func runHealth(cmd *cobra.Command, _ []string) error {
	a, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	results := make(map[string]registry.Health)
	if checkAll {
		results = a.registry.CheckAllHealth(ctx)
	} else {
		name := a.registry.ActiveProvider()
		results[name] = a.registry.CheckHealth(ctx, name)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		h := results[name]
		line := fmt.Sprintf("  %-15s: %-8s %6s  %s", name, h.Status, h.Latency.Round(time.Millisecond), h.Message)
		if h.Status == registry.HealthHealthy {
			color.New(color.FgGreen).Println(line)
			continue
		}
		failed++
		color.New(color.FgRed).Println(line)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d providers unhealthy", failed, len(names))
	}
	return nil
}
