package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zcw199604/one-api-hub/internal/manager"
)

func newAddCommand() *cobra.Command {
	var params manager.SaveParams

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Validate credentials against a site and save the account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if params.ExchangeRate == 0 {
				params.ExchangeRate = a.cfg.DefaultExchangeRate
			}

			result := a.manager.ValidateAndSaveAccount(cmd.Context(), params)
			if !result.Success {
				return errors.New(result.Error)
			}
			fmt.Printf("added account %s (%s @ %s)\n",
				result.Account.ID, result.Account.AccountInfo.Username, result.Account.SiteURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.URL, "url", "", "site base URL (required)")
	cmd.Flags().StringVar(&params.SiteName, "name", "", "display name (required)")
	cmd.Flags().StringVar(&params.SiteType, "type", "auto", "site type, or auto to probe")
	cmd.Flags().StringVar(&params.Username, "username", "", "override the site-reported username")
	cmd.Flags().StringVar(&params.UserID, "user-id", "", "numeric user id for token auth")
	cmd.Flags().StringVar(&params.AccessToken, "token", "", "access token for token auth")
	cmd.Flags().StringVar(&params.APIKey, "api-key", "", "API key, used instead of token auth")
	cmd.Flags().Float64Var(&params.ExchangeRate, "rate", 0, "CNY per USD top-up rate")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			accounts, err := a.store.GetAllAccounts(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tUSER\tBALANCE\tHEALTH")
			for _, account := range accounts {
				balance := "-"
				if adapter := a.registry.Get(account.SiteType); adapter != nil {
					balance = fmt.Sprintf("$%.2f", account.BalanceUSD(adapter.Metadata().Balance))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					account.ID, account.SiteName, account.SiteType,
					account.AccountInfo.Username, balance, account.HealthStatus)
			}
			return w.Flush()
		},
	}
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [account-id]",
		Short: "Refresh one account, or all accounts when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				if err := a.manager.RefreshAccount(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("refreshed %s\n", args[0])
				return nil
			}

			summary, err := a.manager.RefreshAllAccounts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("refreshed %d account(s), %d failed\n", summary.Success, summary.Failed)
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account-id>",
		Short: "Delete a stored account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}

func newDetectCommand() *cobra.Command {
	var siteURL, siteType string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Recover account credentials from a logged-in browser session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.manager.AutoDetectAccount(cmd.Context(), siteURL, siteType)
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if !result.Success {
				return fmt.Errorf("detection failed: %s", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&siteURL, "url", "", "site base URL (required)")
	cmd.Flags().StringVar(&siteType, "type", "auto", "site type, or auto to probe")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
