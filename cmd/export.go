package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mixlab-ai/mixlab/internal/session"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Write a session from the chat log as a text transcript",
		Example: `  mixlab export 3
  mixlab export "Session 3" -o pear.txt
  mixlab export #1 -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.store.Resolve(args[0])
			if err != nil {
				return err
			}
			sess, err := a.store.Get(id)
			if err != nil {
				return err
			}
			transcript := session.FormatTranscript(sess.Turns)

			if output == "-" {
				fmt.Print(transcript)
				return nil
			}
			if output == "" {
				output = session.TranscriptFilename(a.cfg.Brand, id)
			}
			if err := os.WriteFile(output, []byte(transcript), 0o644); err != nil {
				return fmt.Errorf("write transcript: %w", err)
			}
			fmt.Printf("Exported %s (%d messages) to %s\n", id, len(sess.Turns), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `output file ("-" for stdout, default <brand>_<session>.txt)`)
	return cmd
}
