package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/snfs/internal/platform"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget stored keys and session token",
	Long: `Delete the credential file. The next mount asks for the password again.
Deleting the file while mounted unmounts after a final sync.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		removed, err := platform.DeleteCredentials(settings.CredsPath)
		if err != nil {
			fatal("Failed to delete credentials", err)
		}
		if !removed {
			fmt.Println("Not logged in.")
			return
		}
		slog.Info("credentials removed", "path", settings.CredsPath)
		fmt.Println("Logged out.")
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
