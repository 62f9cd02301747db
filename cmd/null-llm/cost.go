package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/config"
	"github.com/starhound/null-llm-go/usage"
)

var costCmd = &cobra.Command{
	Use:   "cost <model> <input-tokens> [output-tokens]",
	Short: "Estimate the price of a request",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runCost,
}

func runCost(_ *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if file := cfg.Settings().ModelsFile; file != "" {
		if err := usage.LoadFromFile(file); err != nil {
			return err
		}
	}

	var u llmprovider.TokenUsage
	if u.InputTokens, err = strconv.Atoi(args[1]); err != nil || u.InputTokens < 0 {
		return fmt.Errorf("invalid input token count %q", args[1])
	}
	if len(args) == 3 {
		if u.OutputTokens, err = strconv.Atoi(args[2]); err != nil || u.OutputTokens < 0 {
			return fmt.Errorf("invalid output token count %q", args[2])
		}
	}

	name := args[0]
	in, out := usage.PricingFor(name)
	window := usage.ContextWindowFor(name)

	printField("Model", name)
	printField("Context window", window)
	printField("Input price", fmt.Sprintf("$%.2f / 1M", in))
	printField("Output price", fmt.Sprintf("$%.2f / 1M", out))
	printField("Tokens", fmt.Sprintf("%d in, %d out", u.InputTokens, u.OutputTokens))
	printField("Cost", fmt.Sprintf("$%.6f", usage.CostFor(u, name)))
	if u.TotalTokens() > window {
		printField("Warning", "request exceeds the context window")
	}
	return nil
}
