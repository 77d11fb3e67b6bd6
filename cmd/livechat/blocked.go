package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietstream/livechat/internal/moderation"
	"github.com/vietstream/livechat/internal/session"
)

func newBlockedCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "Manage the address block list (operator only)",
	}
	cmd.AddCommand(
		newBlockedListCmd(flags),
		newBlockedAddCmd(flags),
		newBlockedRmCmd(flags),
	)
	return cmd
}

// openGateway builds a moderation gateway backed by the stored operator
// credential, and returns the operator identity for attribution.
func openGateway(flags *rootFlags, cmd *cobra.Command) (*moderation.Gateway, *session.Store, string, error) {
	cfg, _, err := setup(flags)
	if err != nil {
		return nil, nil, "", err
	}
	sess, err := session.Open(cfg.StatePath)
	if err != nil {
		return nil, nil, "", err
	}
	user, _, ok := sess.Operator(cmd.Context())
	if !ok {
		sess.Close()
		return nil, nil, "", fmt.Errorf("not logged in; run `livechat login` first")
	}
	return moderation.New(cfg.APIBaseURL, sess), sess, user.Username, nil
}

func newBlockedListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blocked addresses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, sess, _, err := openGateway(flags, cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			entries, err := gw.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tADDRESS\tREASON\tBLOCKED AT\tBY")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.IPAddress, e.Reason, e.BlockedAt, e.BlockedBy)
			}
			return w.Flush()
		},
	}
}

func newBlockedAddCmd(flags *rootFlags) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "Block an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, sess, username, err := openGateway(flags, cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			entry, err := gw.Block(cmd.Context(), args[0], reason, username)
			if err != nil {
				return err
			}
			fmt.Printf("blocked %s (id %d)\n", entry.IPAddress, entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason for the block")
	return cmd
}

func newBlockedRmCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Unblock an address by entry id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			gw, sess, _, err := openGateway(flags, cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := gw.Unblock(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("unblocked entry %d\n", id)
			return nil
		},
	}
}
