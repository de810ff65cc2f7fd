package cmd

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/tangle/foundation/crypto"
)

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate <account>",
	Args:  cobra.ExactArgs(1),
	Short: "Generate a new key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := keyPath(args[0], accountPath(cmd))

		return runKeyGen(dest)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runKeyGen(dest string) error {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}

	if err := ethcrypto.SaveECDSA(dest, kp.Private); err != nil {
		return err
	}

	fmt.Println(crypto.AccountIDFromPublicKey(kp.Public))

	return nil
}
