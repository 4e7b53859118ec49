package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/spf13/cobra"
)

func (a *app) tenantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage tenants",
	}

	var currency string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := cleanName(args[0])
			if err != nil {
				return err
			}
			if currency = strings.TrimSpace(currency); currency != "" {
				if currency, err = normalizeCurrency(currency); err != nil {
					return err
				}
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tenant, err := store.CreateTenant(cmd.Context(), name, currency)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created tenant %d (%s)\n", tenant.ID, tenant.Name)
			return nil
		},
	}
	add.Flags().StringVar(&currency, "currency", "", "base currency for rows without one")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tenants, err := store.ListTenants(cmd.Context())
			if err != nil {
				return err
			}
			if len(tenants) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tenants found. Use 'txnimport tenants add' to create one.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCURRENCY")
			for _, t := range tenants {
				currency := t.BaseCurrency
				if currency == "" {
					currency = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, currency)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func (a *app) accountsCmd() *cobra.Command {
	return a.namedCmd("accounts", "account",
		func(d core.Directory, cmd *cobra.Command, tenantID int64, name string) (int64, error) {
			acct, err := d.CreateAccount(cmd.Context(), tenantID, name)
			if err != nil {
				return 0, err
			}
			return acct.ID, nil
		},
		func(d core.Directory, cmd *cobra.Command, tenantID int64) ([]namedRow, error) {
			accounts, err := d.ListAccounts(cmd.Context(), tenantID)
			rows := make([]namedRow, 0, len(accounts))
			for _, acct := range accounts {
				rows = append(rows, namedRow{acct.ID, acct.Name})
			}
			return rows, err
		},
	)
}

func (a *app) categoriesCmd() *cobra.Command {
	return a.namedCmd("categories", "category",
		func(d core.Directory, cmd *cobra.Command, tenantID int64, name string) (int64, error) {
			cat, err := d.CreateCategory(cmd.Context(), tenantID, name)
			if err != nil {
				return 0, err
			}
			return cat.ID, nil
		},
		func(d core.Directory, cmd *cobra.Command, tenantID int64) ([]namedRow, error) {
			categories, err := d.ListCategories(cmd.Context(), tenantID)
			rows := make([]namedRow, 0, len(categories))
			for _, cat := range categories {
				rows = append(rows, namedRow{cat.ID, cat.Name})
			}
			return rows, err
		},
	)
}

type namedRow struct {
	id   int64
	name string
}

type (
	createFunc func(d core.Directory, cmd *cobra.Command, tenantID int64, name string) (int64, error)
	listFunc   func(d core.Directory, cmd *cobra.Command, tenantID int64) ([]namedRow, error)
)

// namedCmd builds the add/list pair shared by accounts and categories.
func (a *app) namedCmd(plural, singular string, create createFunc, list listFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   plural,
		Short: fmt.Sprintf("Manage the tenant's %s", plural),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: fmt.Sprintf("Add a %s", singular),
		Long: fmt.Sprintf(`Add a %s. Import files reference it by this exact,
case-sensitive name.`, singular),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := a.tenantID()
			if err != nil {
				return err
			}
			name, err := cleanName(args[0])
			if err != nil {
				return err
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			id, err := create(store, cmd, tenantID, name)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %d (%s)\n", singular, id, name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", plural),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := a.tenantID()
			if err != nil {
				return err
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rows, err := list(store, cmd, tenantID)
			if err != nil {
				return err
			}
			return printNamed(cmd.OutOrStdout(), plural, rows)
		},
	})

	return cmd
}

func printNamed(out io.Writer, plural string, rows []namedRow) error {
	if len(rows) == 0 {
		fmt.Fprintf(out, "No %s found. Use 'txnimport %s add' to create one.\n", plural, plural)
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\n", r.id, r.name)
	}
	return w.Flush()
}

// normalizeCurrency upper-cases an ISO 4217 style code and rejects anything
// that is not three letters.
func normalizeCurrency(code string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(code))
	if !core.ValidCurrency(upper) {
		return "", fmt.Errorf("invalid currency %q: want a 3-letter code such as EUR", code)
	}
	return upper, nil
}

// explain prefixes err with its catalogue message and code so the terminal
// shows the same guidance as the API. Unknown errors pass through unchanged.
func explain(err error) error {
	if !core.IsUserFacing(err) {
		return err
	}
	uerr := core.NewUserError(err)
	return fmt.Errorf("%s [%s]: %w", uerr.User.Message, uerr.User.Code, uerr.Technical)
}

// cleanName trims a display name and rejects blank ones.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	return name, nil
}
