package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mixlab-ai/mixlab/internal/chat"
	"github.com/mixlab-ai/mixlab/internal/tui"
)

func newRunCmd() *cobra.Command {
	var (
		prompt       string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send a single prompt non-interactively",
		Example: `  mixlab run -P "three autumn mocktails with pear"
  mixlab run --prompt "a spritz using our lavender syrup" --format jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt / -P is required")
			}
			if outputFormat != "text" && outputFormat != "jsonl" {
				return fmt.Errorf("--format must be text or jsonl, got %q", outputFormat)
			}
			return runOnce(cmd.Context(), prompt, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "P", "", "the prompt to send")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text or jsonl")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

// runOnce sends one prompt in a fresh session, logs it like any other
// session, and exits.
func runOnce(ctx context.Context, prompt, format string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	ui := tui.NewPipeIO(format, verbose)
	for _, n := range a.notices {
		ui.SystemMessage(n)
	}
	c := chat.New(chat.Options{
		Config:   a.cfg,
		Provider: a.backend,
		Store:    a.store,
		Writer:   a.writer,
		Docs:     a.docs,
		Titler:   a.titler,
		IO:       ui,
		Logger:   a.log,
	})
	return c.RunOnce(ctx, prompt)
}
