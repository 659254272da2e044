package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boomtrade/boomtrade/internal/domain"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyEditCmd)

	historyEditCmd.Flags().StringSlice("tag", nil, "Tags to set on the entry (repeatable)")
	historyEditCmd.Flags().String("notes", "", "Notes to set on the entry")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show settled trades",
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []domain.HistoryEntry
		if err := call("GET", "/api/history", nil, &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No settled trades yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWITH\tGAVE\tGOT\tSETTLED\tTAGS")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.CounterpartyAlias, e.MyOfferSummary, e.TheirOfferSummary,
				e.SettledAt.Format("2006-01-02 15:04"), strings.Join(e.Tags, ","))
		}
		return w.Flush()
	},
}

var historyEditCmd = &cobra.Command{
	Use:   "edit ENTRY_ID",
	Short: "Edit tags and notes on a settled trade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, _ := cmd.Flags().GetStringSlice("tag")
		notes, _ := cmd.Flags().GetString("notes")

		body := map[string]interface{}{"tags": tags, "notes": notes}
		if err := call("PATCH", "/api/history/"+args[0], body, nil); err != nil {
			return err
		}
		fmt.Println("Entry updated")
		return nil
	},
}
