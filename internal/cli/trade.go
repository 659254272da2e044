package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boomtrade/boomtrade/internal/domain"
)

func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.AddCommand(tradeProposeCmd)
	tradeCmd.AddCommand(tradeListCmd)
	tradeCmd.AddCommand(tradeAcceptCmd)
	tradeCmd.AddCommand(tradeDeclineCmd)
	tradeCmd.AddCommand(tradeCancelCmd)
}

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Negotiate trades with nearby peers",
}

var tradeProposeCmd = &cobra.Command{
	Use:   "propose PEER_ID",
	Short: "Propose a trade to a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"peer_id": args[0]}
		var session domain.TradeSession
		if err := call("POST", "/api/trades", body, &session); err != nil {
			return err
		}
		fmt.Printf("Proposed trade %s: %s\n", session.ID, session.InitiatorOffer.Summary())
		return nil
	},
}

var tradeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trade sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var sessions []domain.TradeSession
		if err := call("GET", "/api/trades", nil, &sessions); err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No trade sessions")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tINITIATOR\tRECEIVER\tCREATED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.State, s.InitiatorPeerID, s.ReceiverPeerID, s.CreatedAt.Format("15:04:05"))
		}
		return w.Flush()
	},
}

// tradeVerbCmd builds accept/decline/cancel commands, which differ only in
// the verb.
func tradeVerbCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " SESSION_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var session domain.TradeSession
			if err := call("POST", "/api/trades/"+args[0]+"/"+verb, nil, &session); err != nil {
				return err
			}
			fmt.Printf("Trade %s is now %s\n", session.ID, session.State)
			if session.State == domain.TradePasscodeConfirmation {
				fmt.Printf("Passcode: %s\n", session.Passcode)
			}
			return nil
		},
	}
}

var (
	tradeAcceptCmd  = tradeVerbCmd("accept", "Accept an incoming trade proposal")
	tradeDeclineCmd = tradeVerbCmd("decline", "Decline an incoming trade proposal")
	tradeCancelCmd  = tradeVerbCmd("cancel", "Cancel one of your trade sessions")
)
