package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xenking/kart-storefront/internal/domain/address"
)

func newAddressCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Manage delivery addresses",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.sf.Addresses.List(cmd.Context(), c.sf.Session.State())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No addresses")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ADDRESS\tNAME\tCITY\tPOSTAL\tTYPE")
			for _, a := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.City, a.PostalCode, a.Kind)
			}
			return tw.Flush()
		},
	}

	var in address.Address
	add := &cobra.Command{
		Use:   "add",
		Short: "Save a new address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.ID = ""
			return c.saveAddress(cmd, in)
		},
	}
	addressFlags(add.Flags(), &in)

	var edited address.Address
	edit := &cobra.Command{
		Use:   "edit ADDRESS_ID",
		Short: "Replace a saved address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edited.ID = args[0]
			return c.saveAddress(cmd, edited)
		},
	}
	addressFlags(edit.Flags(), &edited)

	remove := &cobra.Command{
		Use:   "delete ADDRESS_ID",
		Short: "Delete a saved address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.sf.Addresses.Delete(cmd.Context(), c.sf.Session.State(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Address %s deleted\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, add, edit, remove)
	return cmd
}

func (c *cli) saveAddress(cmd *cobra.Command, a address.Address) error {
	saved, err := c.sf.Addresses.Save(cmd.Context(), c.sf.Session.State(), a)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Address %s saved\n", saved.ID)
	return nil
}

func addressFlags(f *pflag.FlagSet, a *address.Address) {
	f.StringVar(&a.Name, "name", "", "Recipient name")
	f.StringVar(&a.Phone, "phone", "", "Contact phone")
	f.StringVar(&a.Line1, "line1", "", "Street address")
	f.StringVar(&a.Line2, "line2", "", "Locality")
	f.StringVar(&a.Landmark, "landmark", "", "Landmark")
	f.StringVar(&a.City, "city", "", "City, district or town")
	f.StringVar(&a.State, "region", "", "State or region")
	f.StringVar(&a.PostalCode, "postal-code", "", "Postal code")
	f.StringVar(&a.Kind, "type", "home", "Address type: home or work")
}
