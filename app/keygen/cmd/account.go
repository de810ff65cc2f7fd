package cmd

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/tangle/foundation/crypto"
)

// accountCmd represents the account command.
var accountCmd = &cobra.Command{
	Use:   "account <account>",
	Args:  cobra.ExactArgs(1),
	Short: "Print the account id for a stored key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAccount(keyPath(args[0], accountPath(cmd)))
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func runAccount(keyFile string) error {
	pri, err := ethcrypto.LoadECDSA(keyFile)
	if err != nil {
		return err
	}

	fmt.Println(crypto.AccountIDFromPublicKey(&pri.PublicKey))

	return nil
}
