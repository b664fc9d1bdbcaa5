package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/snfs"
	"github.com/aretw0/snfs/pkg/crypt"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the snfs release and the encryption protocol it speaks",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout())
	},
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "snfs version %s (protocol %s)\n", strings.TrimSpace(snfs.Version), crypt.Version)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
