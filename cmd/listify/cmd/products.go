package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	domain "github.com/dmaier/listify/pkg/types"
)

func productsCmd() *cobra.Command {
	productsRoot := &cobra.Command{
		Use:   "products",
		Short: "Manage catalog products",
		Long: "Manage the product catalog: list products, inspect one, or add\n" +
			"a new product with its price and cost.",
	}

	productsRoot.AddCommand(
		productListCmd(),
		productGetCmd(),
		productCreateCmd(),
	)

	return productsRoot
}

func productListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all products",
		Example: `  listify products list
  listify products list --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			c := newClient()
			products, err := c.ListProducts(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(products)
			}
			if len(products) == 0 {
				fmt.Println("No products found.")
				return nil
			}
			return printProductTable(products)
		},
	}
}

func productGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show product details",
		Example: `  listify products get 7
  listify products get 7 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			c := newClient()
			p, err := c.GetProduct(context.Background(), id)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(p)
			}
			return printProductDetail(p)
		},
	}
}

func productCreateCmd() *cobra.Command {
	var (
		productTitle string
		productDesc  string
		productPrice float64
		productCost  float64
		productImage string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a product to the catalog",
		Long: "Add a product with its sale price and unit cost. The predicted\n" +
			"profit margin is computed on the server. Upload the product photo\n" +
			"first via POST /api/v1/uploads and pass its filename with --image.",
		Example: `  listify products create --title "Ceramic mug" --price 20 --cost 12

  listify products create --title "Linen tote" --price 35.50 --cost 14 \
    --description "Hand-stitched linen tote bag" --image 8f14e45f.jpg`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if productTitle == "" || productPrice <= 0 {
				return fmt.Errorf("--title and a positive --price are required")
			}
			p := &domain.Product{
				Title:         productTitle,
				Description:   productDesc,
				Price:         productPrice,
				Cost:          productCost,
				ImageFilename: productImage,
			}
			c := newClient()
			created, err := c.CreateProduct(context.Background(), p)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(created)
			}
			fmt.Printf("Product created: %s (id %d, margin %.1f%%)\n",
				created.Title, created.ID, created.PredictedMargin)
			return nil
		},
	}
	cmd.Flags().StringVar(&productTitle, "title", "", "product title")
	cmd.Flags().StringVar(&productDesc, "description", "", "product description")
	cmd.Flags().Float64Var(&productPrice, "price", 0, "sale price")
	cmd.Flags().Float64Var(&productCost, "cost", 0, "unit cost")
	cmd.Flags().StringVar(&productImage, "image", "", "uploaded image filename")

	return cmd
}
