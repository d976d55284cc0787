package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	domain "github.com/dmaier/listify/pkg/types"
)

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <id> <provider>",
		Short: "Publish a product to a marketplace",
		Long: "Push a catalog product to etsy or ebay. The server must hold a\n" +
			"valid OAuth session for the provider; visit /auth/<provider> in a\n" +
			"browser to authorize first.",
		Example: `  listify publish 7 etsy
  listify publish 7 ebay --output json`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			provider, err := domain.ParseProvider(args[1])
			if err != nil {
				return err
			}

			c := newClient()
			updated, err := c.Publish(context.Background(), id, provider)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(updated)
			}

			state := updated.State(provider)
			fmt.Printf("Published %q to %s (listing %s)\n",
				updated.Title, provider, state.ListingID)
			return nil
		},
	}
}
