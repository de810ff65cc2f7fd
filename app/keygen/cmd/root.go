// Package cmd contains the keygen app's commands.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const keyExt = ".ecdsa"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate and inspect tangle account keys",
}

// Execute runs the keygen command tree.
func Execute() {
	cobra.OnInitialize(initConfig)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	viper.BindPFlag("account-path", rootCmd.PersistentFlags().Lookup("account-path"))
}

// initConfig lets a keygen.yaml in the current directory or
// $HOME/.tangle override the account-path default, the way a deployment can pin
// every node in a network to a shared accounts directory without
// passing -p on every invocation.
func initConfig() {
	viper.SetConfigName("keygen")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.tangle")
	viper.SetEnvPrefix("KEYGEN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "keygen: reading config: %s\n", err)
		}
	}
}

func keyPath(acctName, path string) string {
	if !strings.HasSuffix(acctName, keyExt) {
		acctName += keyExt
	}

	return filepath.Join(path, acctName)
}

func accountPath(cmd *cobra.Command) string {
	if cmd.Flags().Changed("account-path") {
		v, _ := cmd.Flags().GetString("account-path")
		return v
	}

	return viper.GetString("account-path")
}
