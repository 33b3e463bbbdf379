package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/atelier-commerce/atelier/internal/session"
)

// NewProductsCmd creates the products command
func NewProductsCmd() *cobra.Command {
	var envName string

	cmd := &cobra.Command{
		Use:   "products",
		Short: "Work with the storefront catalog",
	}

	lsCmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List catalog products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsList(envName)
		},
	}
	lsCmd.Flags().StringVar(&envName, "env", "", "Environment name (uses selected environment if not specified)")

	cmd.AddCommand(lsCmd)
	return cmd
}

func runProductsList(envName string) error {
	env, err := getEnvironment(envName)
	if err != nil {
		return err
	}

	apiClient := newAPIClient(env, session.DefaultStore())

	products, err := apiClient.ListProducts()
	if err != nil {
		return err
	}

	if len(products) == 0 {
		fmt.Println("No products found.")
		return nil
	}

	fmt.Printf("Products on %s (%s):\n\n", env.Name, env.URL)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tPRICE\tIN STOCK")
	fmt.Fprintln(w, "────\t────────\t─────\t────────")

	for _, product := range products {
		inStock := "no"
		if product.InStock {
			inStock = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n",
			product.Name,
			product.Category,
			product.Price,
			inStock,
		)
	}

	return w.Flush()
}
