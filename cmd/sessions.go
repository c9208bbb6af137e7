package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mixlab-ai/mixlab/internal/chat"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the sessions stored in the chat log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.writer.Enabled() {
				return fmt.Errorf("no chat log configured (log_store.backend is %q)", a.logBackend())
			}
			list := a.store.List()
			if len(list) == 1 && list[0].Turns == 0 {
				fmt.Println("The chat log is empty.")
				return nil
			}
			fmt.Println(chat.FormatSessionList(list, a.store.MaxResident()))
			return nil
		},
	}
}
