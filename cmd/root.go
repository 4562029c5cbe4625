package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dPrefs/cmd/prefs"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:           "dprefs",
		Short:         "typed settings store",
		SilenceUsage:  true,
		Long: fmt.Sprintf(`dPrefs (v%s)

A typed key-value settings library written in Go. Values keep their type
across in-memory, SQLite, file (YAML/TOML) and OS keyring engines.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dPrefs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dPrefs v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(prefs.PrefsCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	err := RootCmd.Execute()
	if closeErr := prefs.Close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", closeErr)
		err = closeErr
	}
	if err != nil {
		os.Exit(1)
	}
}
