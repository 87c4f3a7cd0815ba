package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zcw199604/one-api-hub/internal/core"
)

// adapterFor loads an account, asserts the capability, and rebuilds its
// stored credentials. Shared by every per-account adapter command.
func adapterFor(ctx context.Context, a *app, accountID string, cap core.Capability) (core.SiteAdapter, core.SiteCredentials, error) {
	account, err := a.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, core.SiteCredentials{}, err
	}
	if account == nil {
		return nil, core.SiteCredentials{}, fmt.Errorf("account %s not found", accountID)
	}

	adapter := a.registry.Get(account.SiteType)
	if err := core.AssertCapability(adapter, cap); err != nil {
		return nil, core.SiteCredentials{}, err
	}

	creds, err := a.manager.CredentialsFor(account)
	if err != nil {
		return nil, core.SiteCredentials{}, err
	}
	return adapter, creds, nil
}

func newTokenCommand() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens on a site account",
	}
	cmd.PersistentFlags().StringVar(&accountID, "account", "", "stored account id (required)")
	_ = cmd.MarkPersistentFlagRequired("account")

	cmd.AddCommand(
		newTokenListCommand(&accountID),
		newTokenCreateCommand(&accountID),
		newTokenUpdateCommand(&accountID),
		newTokenDeleteCommand(&accountID),
		newTokenAccessCommand(&accountID),
	)
	return cmd
}

func newTokenListCommand(accountID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the account's API tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			adapter, creds, err := adapterFor(cmd.Context(), a, *accountID, core.CapabilityTokenManagement)
			if err != nil {
				return err
			}

			tokens, err := adapter.(core.TokenManager).GetAPITokens(cmd.Context(), creds)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tREMAIN\tUNLIMITED\tEXPIRES")
			for _, token := range tokens {
				expires := "never"
				if token.ExpiredTime > 0 {
					expires = time.Unix(token.ExpiredTime, 0).Format("2006-01-02")
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%.0f\t%t\t%s\n",
					token.ID, token.Name, token.Status, token.RemainQuota, token.UnlimitedQuota, expires)
			}
			return w.Flush()
		},
	}
}

func newTokenCreateCommand(accountID *string) *cobra.Command {
	var (
		name      string
		quota     float64
		unlimited bool
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API token on the site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			adapter, creds, err := adapterFor(cmd.Context(), a, *accountID, core.CapabilityTokenManagement)
			if err != nil {
				return err
			}

			token := core.APIToken{
				Name:           name,
				RemainQuota:    quota,
				UnlimitedQuota: unlimited,
				ExpiredTime:    -1,
			}
			if expiresIn > 0 {
				token.ExpiredTime = time.Now().Add(expiresIn).Unix()
			}

			if err := adapter.(core.TokenManager).CreateAPIToken(cmd.Context(), creds, token); err != nil {
				return err
			}
			fmt.Printf("created token %q\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "token name (required)")
	cmd.Flags().Float64Var(&quota, "quota", 0, "quota to grant, in the site's raw unit")
	cmd.Flags().BoolVar(&unlimited, "unlimited", false, "grant unlimited quota")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "lifetime, e.g. 720h; 0 means never")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newTokenUpdateCommand(accountID *string) *cobra.Command {
	var (
		name      string
		quota     float64
		unlimited bool
		status    int
	)

	cmd := &cobra.Command{
		Use:   "update <token-id>",
		Short: "Update an API token on the site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("token id %q is not numeric", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			adapter, creds, err := adapterFor(cmd.Context(), a, *accountID, core.CapabilityTokenManagement)
			if err != nil {
				return err
			}

			token := core.APIToken{
				ID:             tokenID,
				Name:           name,
				RemainQuota:    quota,
				UnlimitedQuota: unlimited,
				Status:         status,
			}
			if err := adapter.(core.TokenManager).UpdateAPIToken(cmd.Context(), creds, token); err != nil {
				return err
			}
			fmt.Printf("updated token %d\n", tokenID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new token name")
	cmd.Flags().Float64Var(&quota, "quota", 0, "new quota, in the site's raw unit")
	cmd.Flags().BoolVar(&unlimited, "unlimited", false, "grant unlimited quota")
	cmd.Flags().IntVar(&status, "status", 1, "token status (1 enabled, 2 disabled)")

	return cmd
}

func newTokenDeleteCommand(accountID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <token-id>",
		Short: "Delete an API token on the site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("token id %q is not numeric", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			adapter, creds, err := adapterFor(cmd.Context(), a, *accountID, core.CapabilityTokenManagement)
			if err != nil {
				return err
			}

			if err := adapter.(core.TokenManager).DeleteAPIToken(cmd.Context(), creds, tokenID); err != nil {
				return err
			}
			fmt.Printf("deleted token %d\n", tokenID)
			return nil
		},
	}
}

func newTokenAccessCommand(accountID *string) *cobra.Command {
	return &cobra.Command{
		Use:   "access",
		Short: "Mint (or fetch) the account's system access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			adapter, creds, err := adapterFor(cmd.Context(), a, *accountID, core.CapabilityTokenManagement)
			if err != nil {
				return err
			}

			token, err := adapter.(core.TokenManager).GetOrCreateAccessToken(cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func newModelsCommand() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models available to an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			adapter, creds, err := adapterFor(cmd.Context(), a, accountID, core.CapabilityModelList)
			if err != nil {
				return err
			}

			models, err := adapter.(core.ModelLister).GetAvailableModels(cmd.Context(), creds)
			if err != nil {
				return err
			}
			for _, model := range models {
				fmt.Println(model)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "stored account id (required)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newPricingCommand() *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Show per-model pricing reported by an account's site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			adapter, creds, err := adapterFor(cmd.Context(), a, accountID, core.CapabilityModelPricing)
			if err != nil {
				return err
			}

			prices, err := adapter.(core.ModelPricer).GetModelPricing(cmd.Context(), creds)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tTYPE\tRATIO\tCOMPLETION\tPRICE")
			for _, price := range prices {
				fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.4f\n",
					price.Model, price.Type, price.Ratio, price.CompletionRatio, price.Price)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "stored account id (required)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
