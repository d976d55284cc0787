package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as CSV",
		Example: `  listify export
  listify export --out products.csv`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			data, err := c.Export(context.Background())
			if err != nil {
				return err
			}

			if outFile == "" {
				_, err = os.Stdout.Write(data)
				return err
			}

			if err := os.WriteFile(outFile, data, 0o644); err != nil { //nolint:gosec // report file
				return fmt.Errorf("writing %s: %w", outFile, err)
			}
			fmt.Printf("Wrote %d bytes to %s\n", len(data), outFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "", "write CSV to a file instead of stdout")

	return cmd
}
