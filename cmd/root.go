package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "misra",
	Short: "Fault-tolerant token ring mutual exclusion simulator",
	Long: `A simulator for ring-based distributed mutual exclusion with a
PING/PONG token pair. Token loss is injected at the transport and the ring
detects and repairs it by regenerating the missing token and incarnating a
fresh generation.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
