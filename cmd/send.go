package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drover-dev/drover/internal/errors"
)

var sendCmd = &cobra.Command{
	Use:   "send <session-id> <message...>",
	Short: "Send a message to a session's agent",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := setup()
		if err != nil {
			return err
		}

		id := args[0]
		message := strings.Join(args[1:], " ")
		err = mgr.Send(cmd.Context(), id, message)
		if errors.Is(err, errors.KindDeliveryAmbiguous) {
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s, but delivery could not be confirmed\n", id)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", id)
		return nil
	},
}

var killCmd = &cobra.Command{
	Use:   "kill <session-id>",
	Short: "Force-terminate a session and remove its workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := setup()
		if err != nil {
			return err
		}
		if err := mgr.Kill(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "killed %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(killCmd)
}
