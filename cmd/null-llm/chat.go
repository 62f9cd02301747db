package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/fallback"
	"github.com/starhound/null-llm-go/usage"
	"github.com/starhound/null-llm-go/validation"
)

var (
	systemPrompt string
	noFallback   bool
	showUsage    bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt...]",
	Short: "Send a prompt, or start an interactive session",
	Long: `Send a prompt to the active provider and stream the answer.

Without arguments the prompt is read from standard input, or an interactive
session starts when standard input is a terminal. Failed requests are retried
and handed to the providers listed under fallback.providers.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&systemPrompt, "system", "s", "", "system prompt (overrides the configured one)")
	chatCmd.Flags().BoolVar(&noFallback, "no-fallback", false, "disable retries and provider failover")
	chatCmd.Flags().BoolVarP(&showUsage, "usage", "u", false, "print token usage and cost after each answer")
}

// chatSession carries the conversation across turns.
type chatSession struct {
	app     *app
	orch    *fallback.Orchestrator
	costs   *usage.Session
	system  string
	history []llmprovider.Message
	out     io.Writer
}

func runChat(cmd *cobra.Command, args []string) error {
	a, closeFn, err := setup()
	if err != nil {
		return err
	}
	defer closeFn()

	fbCfg := a.cfg.Fallback()
	if noFallback {
		fbCfg.Enabled = false
	}

	s := &chatSession{
		app:    a,
		orch:   fallback.New(a.registry, fbCfg, fallback.WithLogger(a.logger)),
		costs:  usage.NewSession(),
		system: llmprovider.GetOrDefault(systemPrompt, a.cfg.SystemPrompt()),
		out:    cmd.OutOrStdout(),
	}

	ctx := cmd.Context()
	if len(args) > 0 {
		return s.turn(ctx, strings.Join(args, " "))
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading prompt: %w", err)
		}
		prompt := strings.TrimSpace(string(data))
		if prompt == "" {
			return errors.New("empty prompt")
		}
		return s.turn(ctx, prompt)
	}

	return s.interactive(ctx, cmd.InOrStdin())
}

func (s *chatSession) interactive(ctx context.Context, in io.Reader) error {
	color.Cyan("%s %s, provider %s. Type /exit to quit, /reset to clear history.", AppName, Version, s.app.registry.ActiveProvider())

	prompt := color.New(color.FgGreen, color.Bold)
	scanner := bufio.NewScanner(in)
	for {
		prompt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			s.history = nil
			color.Yellow("History cleared.")
			continue
		}

		if err := s.turn(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			color.Red("Error: %v", err)
		}
	}
}

// turn sends one prompt and appends the exchange to the history on success.
func (s *chatSession) turn(ctx context.Context, prompt string) error {
	ok, msg := s.costs.CheckLimit()
	if !ok {
		return errors.New(msg)
	}
	if msg != "" {
		color.Yellow("Warning: %s", msg)
	}

	s.preflight(prompt)

	s.orch.ClearEvents()
	stream := s.orch.Generate(ctx, fallback.Request{
		Prompt:       prompt,
		History:      s.history,
		SystemPrompt: s.system,
	})
	defer stream.Close()

	var (
		text   strings.Builder
		tokens *llmprovider.TokenUsage
	)
	for stream.Next() {
		ev := stream.Event()
		if ev.Error != nil {
			fmt.Fprintln(s.out)
			return ev.Error
		}
		if ev.Text != "" {
			fmt.Fprint(s.out, ev.Text)
			text.WriteString(ev.Text)
		}
		if ev.Usage != nil {
			tokens = ev.Usage
		}
	}
	fmt.Fprintln(s.out)
	if err := stream.Err(); err != nil {
		return err
	}

	s.history = append(s.history, llmprovider.UserMessage(prompt), llmprovider.AssistantMessage(text.String()))

	served := s.servedBy()
	for _, ev := range s.orch.Events() {
		color.Yellow("Switched from %s to %s after %d attempt(s): %v", ev.From, ev.To, ev.Attempts, ev.Err)
	}

	if tokens != nil {
		rec := s.costs.Record(served, *tokens)
		if showUsage {
			color.New(color.Faint).Fprintf(s.out, "[%s] %d in / %d out tokens, $%.4f (session $%.4f)\n",
				served, rec.Usage.InputTokens, rec.Usage.OutputTokens, rec.Cost, s.costs.Cost())
		}
	}
	return nil
}

// preflight prints advisory warnings for the active provider.
func (s *chatSession) preflight(prompt string) {
	name := s.app.registry.ActiveProvider()
	p := s.app.registry.GetProvider(name, false)
	if p == nil {
		return
	}
	req := &validation.Request{
		Provider:      p.Name(),
		Model:         p.Model(),
		SupportsTools: p.SupportsTools(),
		Options:       s.app.cfg.ProviderConfig(name).Options,
		GenerateRequest: llmprovider.GenerateRequest{
			Prompt:       prompt,
			History:      s.history,
			SystemPrompt: s.system,
		},
	}
	warnings := validation.FilterBySeverity(validation.Warnings(req), validation.SeverityWarning, validation.SeverityError)
	for _, w := range warnings {
		color.Yellow("Warning: %s", w.Message)
	}
}

// servedBy returns the model that answered the last turn.
func (s *chatSession) servedBy() string {
	name := s.app.registry.ActiveProvider()
	if events := s.orch.Events(); len(events) > 0 {
		name = events[len(events)-1].To
	}
	if p := s.app.registry.GetProvider(name, false); p != nil {
		return p.Model()
	}
	return name
}
