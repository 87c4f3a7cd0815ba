package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zcw199604/one-api-hub/internal/config"
)

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved session cookies for cookie-authenticated sites",
		Long: "Saved session cookies back up the browser cookie stores: on a headless\n" +
			"machine with no browser profile, a cookie header pasted from a logged-in\n" +
			"browser is the only way to authenticate cookie-only sites.",
	}
	cmd.AddCommand(
		newSessionSetCommand(),
		newSessionClearCommand(),
		newSessionListCommand(),
	)
	return cmd
}

func newSessionSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <domain> <cookie-header>",
		Short: "Save a raw Cookie header for a site domain",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := config.SaveSessionCookie(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("saved session cookie for %s\n", args[0])
			return nil
		},
	}
}

func newSessionClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <domain>",
		Short: "Remove the saved session cookie for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := config.DeleteSessionCookie(args[0]); err != nil {
				return err
			}
			fmt.Printf("cleared session cookie for %s\n", args[0])
			return nil
		},
	}
}

func newSessionListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List domains with a saved session cookie",
		RunE: func(_ *cobra.Command, _ []string) error {
			sessions, err := config.LoadSessions()
			if err != nil {
				return err
			}

			domains := make([]string, 0, len(sessions.Cookies))
			for domain := range sessions.Cookies {
				domains = append(domains, domain)
			}
			sort.Strings(domains)

			// Cookie values are credentials; print only the domains.
			for _, domain := range domains {
				fmt.Println(domain)
			}
			return nil
		},
	}
}
