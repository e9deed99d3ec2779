// capbench exercises a capped record store against the in-memory reference
// dictionary: a capped insert workload with eviction statistics, and an
// oplog scenario with concurrent writers and a tailing reader.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "capbench",
	Short: "workload driver for capped record stores",
	Long: fmt.Sprintf(`capbench (v%s)

Drives insert and oplog-tailing workloads against an in-memory capped
record store and reports eviction statistics.`, version),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the capbench version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("capbench v%s\n", version)
	},
}

func main() {
	// Optional .env file for flag defaults; absence is fine.
	_ = godotenv.Load()

	rootCmd.AddCommand(versionCmd, insertCmd, oplogCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
