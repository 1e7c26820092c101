package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xenking/kart-storefront/internal/checkout"
	"github.com/xenking/kart-storefront/internal/domain/order"
)

func newCheckoutCommand(c *cli) *cobra.Command {
	var (
		p       checkout.Payment
		payment string
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Order everything in the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.Type = order.PaymentType(payment)
			o, err := c.sf.Checkout.Place(cmd.Context(), c.sf.Session.State(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s placed\n", o.ID)
			printOrder(cmd.OutOrStdout(), o)
			return nil
		},
	}
	cmd.Flags().StringVar(&payment, "payment", string(order.PaymentCOD), "Payment type: cod or card")
	cmd.Flags().StringVar(&p.Reference, "reference", "", "Card payment reference")
	cmd.Flags().StringVar(&p.AddressID, "address", "", "Delivery address id")
	cmd.Flags().StringVar(&p.CouponCode, "coupon", "", "Promo code")
	return cmd
}

func newOrdersCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List placed orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := c.sf.Checkout.History(cmd.Context(), c.sf.Session.State())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(orders) == 0 {
				fmt.Fprintln(out, "No orders")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tPLACED\tSTATUS\tPAYMENT\tTOTAL")
			for _, o := range orders {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s\n",
					o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.State, o.PaymentType, o.PaymentStatus, o.Total.StringFixed(2))
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show ORDER_ID",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := c.sf.Checkout.Order(cmd.Context(), c.sf.Session.State(), args[0])
			if err != nil {
				return err
			}
			printOrder(cmd.OutOrStdout(), o)
			return nil
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel ORDER_ID",
		Short: "Cancel a placed order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := c.sf.Checkout.Cancel(cmd.Context(), c.sf.Session.State(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s cancelled\n", o.ID)
			return nil
		},
	}

	cmd.AddCommand(show, cancel)
	return cmd
}

func printOrder(w io.Writer, o order.Order) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tQTY\tPRICE")
	for _, it := range o.Items {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", it.ProductID, it.Quantity, it.PayablePrice.StringFixed(2))
	}
	_ = tw.Flush()
	if o.CouponCode != "" {
		fmt.Fprintf(w, "Coupon %s: -%s\n", o.CouponCode, o.Discount.StringFixed(2))
	}
	fmt.Fprintf(w, "Total %s (%s, %s)\n", o.Total.StringFixed(2), o.PaymentType, o.PaymentStatus)
	if o.State == order.StateCancelled {
		fmt.Fprintln(w, "Cancelled")
	}
}
