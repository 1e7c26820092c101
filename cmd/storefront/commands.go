package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/reconciler"
)

func newCartCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := c.sf.Session.State()
			printCart(cmd.OutOrStdout(), c.sf.Carts.GetCart(cmd.Context(), st))
			warnStale(cmd.ErrOrStderr(), st)
			return nil
		},
	}

	var qty int
	add := &cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Add a product from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.sf.Catalog.Product(cmd.Context(), args[0])
			if err != nil {
				return errors.Wrap(err, "look up product")
			}
			return c.show(cmd, func(st *reconciler.State) error {
				_, err := c.sf.Carts.AddItem(cmd.Context(), st, cart.Product{
					ID:    p.ID,
					Name:  p.Name,
					Image: p.Image,
					Price: p.Price,
				}, qty)
				return err
			})
		},
	}
	add.Flags().IntVarP(&qty, "qty", "q", 1, "Quantity to add")

	remove := &cobra.Command{
		Use:   "remove PRODUCT_ID",
		Short: "Remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.show(cmd, func(st *reconciler.State) error {
				_, err := c.sf.Carts.RemoveItem(cmd.Context(), st, args[0])
				return err
			})
		},
	}

	inc := &cobra.Command{
		Use:   "inc PRODUCT_ID",
		Short: "Increase a quantity by one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.show(cmd, func(st *reconciler.State) error {
				return c.sf.Carts.IncrementQuantity(cmd.Context(), st, args[0])
			})
		},
	}

	dec := &cobra.Command{
		Use:   "dec PRODUCT_ID",
		Short: "Decrease a quantity by one, never below one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.show(cmd, func(st *reconciler.State) error {
				return c.sf.Carts.DecrementQuantity(cmd.Context(), st, args[0])
			})
		},
	}

	cmd.AddCommand(get, add, remove, inc, dec)
	return cmd
}

// show runs op against the restored state and prints the displayed cart.
func (c *cli) show(cmd *cobra.Command, op func(*reconciler.State) error) error {
	st := c.sf.Session.State()
	if err := op(st); err != nil {
		return err
	}
	printCart(cmd.OutOrStdout(), st.Cart())
	return nil
}

func newProductsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			products, err := c.sf.Catalog.Products(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRODUCT\tNAME\tCATEGORY\tPRICE")
			for _, p := range products {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2))
			}
			return tw.Flush()
		},
	}
}

func newLoginCommand(c *cli) *cobra.Command {
	var creds auth.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and merge the guest cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.sf.Session.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Signed in as %s\n", displayName(res.User))
			switch {
			case res.MergeErr != nil:
				fmt.Fprintf(cmd.ErrOrStderr(), "Guest cart kept, run 'storefront merge' to retry: %v\n", res.MergeErr)
			case res.Merged:
				fmt.Fprintln(out, "Guest cart merged")
			}
			printCart(out, c.sf.Session.State().Cart())
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.sf.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newMergeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Retry merging the guest cart into the account cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			merged, err := c.sf.Session.RetryMerge(cmd.Context())
			if err != nil {
				return err
			}
			if !merged {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to merge")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Guest cart merged")
			printCart(cmd.OutOrStdout(), c.sf.Session.State().Cart())
			return nil
		},
	}
}

func displayName(u auth.User) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	}
	return u.ID
}

func printCart(w io.Writer, c cart.Cart) {
	if c.IsEmpty() {
		fmt.Fprintln(w, "Cart is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tTOTAL")
	for _, l := range c.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.ProductID, l.Product.Name, strconv.Itoa(l.Quantity), l.Total().StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d items, subtotal %s\n", c.ItemCount(), c.Subtotal().StringFixed(2))
}

func warnStale(w io.Writer, st *reconciler.State) {
	if err := st.Err(); err != nil {
		fmt.Fprintf(w, "Cart could not be refreshed: %v\n", err)
	}
}
