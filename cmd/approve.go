package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dai-supply/pkg/history"
)

var approveYes bool

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Enable the cDAI market to spend your DAI",
	Long: `Send an approve transaction that gives the cDAI market an unlimited allowance
on your DAI, then wait for it to be mined.

Examples:
  dai-supply approve
  dai-supply approve --yes`,
	Args: cobra.NoArgs,
	RunE: runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)

	approveCmd.Flags().BoolVarP(&approveYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runApprove(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connect(ctx); err != nil {
		return err
	}

	if a.session.State().Approved {
		if a.jsonOutput {
			return printJSON(a.session.State())
		}
		printSuccess("The market is already enabled for " + a.session.State().Account.Hex())
		return nil
	}

	if !approveYes && !a.jsonOutput {
		fmt.Printf("\nThe cDAI market %s will be allowed to spend all DAI held by %s.\n",
			color.CyanString(a.cfg.MarketAddress), color.CyanString(a.session.State().Account.Hex()))
		if !confirm("Send the approve transaction?") {
			color.Yellow("\nApprove cancelled")
			return nil
		}
	}

	err = a.withSpinner(" Waiting for the approve transaction to be mined...", func() error {
		return a.session.Approve(ctx)
	})
	if err != nil {
		printTxHint(a)
		return err
	}

	st := a.session.State()
	if a.jsonOutput {
		return printJSON(st)
	}

	printSuccess("Market enabled")
	printTxHint(a)
	return nil
}

// printTxHint shows the last transaction hash with its explorer link
func printTxHint(a *app) {
	st := a.session.State()
	if st.LastTx == "" || a.jsonOutput {
		return
	}
	fmt.Printf("  Transaction: %s\n", color.HiBlackString(st.LastTx))
	if link := history.TxURL(a.cfg.ChainID, st.LastTx); link != "" {
		fmt.Printf("  Explorer:    %s\n", color.BlueString(link))
	}
	fmt.Println()
}
