package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boomtrade/boomtrade/internal/app/matcher"
	"github.com/boomtrade/boomtrade/internal/domain"
)

func init() {
	rootCmd.AddCommand(peersCmd)
	peersCmd.AddCommand(peersTagCmd)
	rootCmd.AddCommand(candidatesCmd)
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List traders currently visible on the mesh",
	RunE: func(cmd *cobra.Command, args []string) error {
		var peers []domain.Peer
		if err := call("GET", "/api/peers", nil, &peers); err != nil {
			return err
		}
		if len(peers) == 0 {
			fmt.Println("No traders nearby")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tALIAS\tTRUST\tLAST SEEN")
		for _, p := range peers {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\n",
				p.ID, p.Alias, p.TrustScore, p.LastSeenAt.Format("15:04:05"))
		}
		return w.Flush()
	},
}

var peersTagCmd = &cobra.Command{
	Use:   "tag PEER_ID TAG",
	Short: "Attach a reputation tag to a peer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"tag": args[1]}
		if err := call("POST", "/api/peers/"+args[0]+"/tags", body, nil); err != nil {
			return err
		}
		fmt.Printf("Tagged %s with %q\n", args[0], args[1])
		return nil
	},
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List peers whose offer matches your need",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cands []matcher.Candidate
		if err := call("GET", "/api/candidates", nil, &cands); err != nil {
			return err
		}
		if len(cands) == 0 {
			fmt.Println("No matching offers nearby")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PEER\tALIAS\tTRUST\tOFFER\tMATCH")
		for _, c := range cands {
			match := "partial"
			if c.Exact {
				match = "exact"
			}
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\n",
				c.Peer.ID, c.Peer.Alias, c.Peer.TrustScore, c.Offer.Summary(), match)
		}
		return w.Flush()
	},
}
