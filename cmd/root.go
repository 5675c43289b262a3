package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dai-supply/pkg/dapp"
)

var rootCmd = &cobra.Command{
	Use:   "dai-supply",
	Short: "Supply DAI into the Compound cDAI market from the command line",
	Long: `dai-supply connects a wallet key to an Ethereum node, shows your DAI and cDAI
balances, enables the cDAI market to spend your DAI and supplies DAI into it.

Examples:
  dai-supply connect
  dai-supply approve
  dai-supply supply 25.5
  dai-supply supply --max
  dai-supply history
  dai-supply pending --watch`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error it returns
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\n%s %s\n\n", color.RedString("Error:"), alertMessage(err))
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", color.GreenString(message))
}

// alertMessage turns the session's user-facing errors into instructions.
func alertMessage(err error) string {
	var netErr *dapp.NetworkError
	switch {
	case errors.Is(err, dapp.ErrNoWallet):
		return "Please configure a wallet: set DAI_SUPPLY_PRIVATE_KEY or private_key in .dai-supply.yaml"
	case errors.As(err, &netErr):
		return fmt.Sprintf("Please switch your RPC endpoint to chain %d (currently on chain %s)", netErr.Expected, netErr.Actual)
	case errors.Is(err, dapp.ErrConnect):
		return fmt.Sprintf("Please connect with your wallet (%v)", err)
	default:
		return err.Error()
	}
}
