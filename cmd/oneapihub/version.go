package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zcw199604/one-api-hub/internal/appupdate"
	"github.com/zcw199604/one-api-hub/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("oneapihub " + version.String())
		},
	}
}

func newUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Check whether a newer release is available",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := appupdate.Check(cmd.Context(), appupdate.CheckOptions{
				CurrentVersion: version.Version,
			})
			if err != nil {
				return err
			}
			if result.CurrentVersion == "" {
				fmt.Println("development build; update checks are skipped")
				return nil
			}
			if !result.UpdateAvailable {
				fmt.Printf("up to date (%s)\n", result.CurrentVersion)
				return nil
			}
			fmt.Printf("update available: %s → %s\n", result.CurrentVersion, result.LatestVersion)
			fmt.Println("upgrade with: " + result.UpgradeHint)
			return nil
		},
	}
}
