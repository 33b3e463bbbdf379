package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/atelier-commerce/atelier/internal/session"
)

// NewOrdersCmd creates the orders command
func NewOrdersCmd() *cobra.Command {
	var envName string

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Work with customer orders",
	}

	lsCmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersList(envName)
		},
	}
	lsCmd.Flags().StringVar(&envName, "env", "", "Environment name (uses selected environment if not specified)")

	cmd.AddCommand(lsCmd)
	return cmd
}

func runOrdersList(envName string) error {
	env, err := getEnvironment(envName)
	if err != nil {
		return err
	}

	apiClient := newAPIClient(env, session.DefaultStore())

	orders, err := apiClient.ListOrders()
	if err != nil {
		return err
	}

	if len(orders) == 0 {
		fmt.Println("No orders found.")
		return nil
	}

	fmt.Printf("Orders on %s (%s):\n\n", env.Name, env.URL)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tCUSTOMER\tTOTAL\tSTATUS\tCREATED AT")
	fmt.Fprintln(w, "──────\t────────\t─────\t──────\t──────────")

	for _, order := range orders {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
			order.Number,
			order.CustomerEmail,
			order.Total,
			order.Status,
			order.CreatedAt,
		)
	}

	return w.Flush()
}
