package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	llmprovider "github.com/starhound/null-llm-go"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show known providers and which ones are configured",
	RunE:  runProviders,
}

func runProviders(_ *cobra.Command, _ []string) error {
	a, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()

	active := a.registry.ActiveProvider()
	usable := a.registry.UsableProviders()

	color.Blue("Providers (config %s):", a.cfg.Path())
	for _, info := range llmprovider.KnownProviders() {
		name := info.ID.String()
		mark := "  "
		if name == active {
			mark = "* "
		}

		line := fmt.Sprintf("%s%-15s %-22s %s", mark, name, info.DisplayName, requirements(info))
		switch {
		case name == active:
			color.New(color.FgGreen).Println(line)
		case slices.Contains(usable, name):
			fmt.Println(line)
		default:
			color.New(color.Faint).Println(line)
		}
	}
	return nil
}

func requirements(info llmprovider.ProviderInfo) string {
	var needs []string
	if info.RequiresAPIKey {
		needs = append(needs, "api key")
	}
	if info.RequiresEndpoint {
		needs = append(needs, "endpoint")
	}
	if info.RequiresOAuth {
		needs = append(needs, "oauth token")
	}
	if info.CredentialChain {
		needs = append(needs, "cloud credentials")
	}
	if info.Local {
		needs = append(needs, "local")
	}
	if len(needs) == 0 {
		return ""
	}
	return "(" + strings.Join(needs, ", ") + ")"
}
