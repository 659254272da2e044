package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/boomtrade/boomtrade/internal/domain"
)

func init() {
	rootCmd.AddCommand(offerCmd)
	offerCmd.AddCommand(offerSetCmd)
	offerCmd.AddCommand(offerShowCmd)
	offerCmd.AddCommand(offerClearCmd)
}

var offerCmd = &cobra.Command{
	Use:   "offer",
	Short: "Manage your advertised offer",
}

var offerSetCmd = &cobra.Command{
	Use:   "set HAVE_QTY HAVE_ITEM NEED_QTY NEED_ITEM",
	Short: "Set the offer advertised to nearby traders",
	Long: `Set your current offer. Setting a new offer replaces the previous one.

Example:
  boomtrade offer set 5 Water 3 Food`,
	Args: cobra.ExactArgs(4),
	RunE: runOfferSet,
}

func runOfferSet(cmd *cobra.Command, args []string) error {
	haveQty, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("HAVE_QTY must be a number: %q", args[0])
	}
	needQty, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("NEED_QTY must be a number: %q", args[2])
	}

	body := map[string]interface{}{
		"have_qty":  haveQty,
		"have_name": args[1],
		"need_qty":  needQty,
		"need_name": args[3],
	}
	var offer domain.Offer
	if err := call("PUT", "/api/offer", body, &offer); err != nil {
		return err
	}
	fmt.Printf("Offering %s\n", offer.Summary())
	return nil
}

var offerShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current offer",
	RunE: func(cmd *cobra.Command, args []string) error {
		var offer domain.Offer
		if err := call("GET", "/api/offer", nil, &offer); err != nil {
			return err
		}
		fmt.Println(offer.Summary())
		return nil
	},
}

var offerClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Withdraw the current offer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := call("DELETE", "/api/offer", nil, nil); err != nil {
			return err
		}
		fmt.Println("Offer cleared")
		return nil
	},
}
