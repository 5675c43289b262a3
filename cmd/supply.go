package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dai-supply/pkg/dapp"
)

var (
	supplyMax bool
	supplyYes bool
)

var supplyCmd = &cobra.Command{
	Use:   "supply [amount]",
	Short: "Supply DAI into the cDAI market",
	Long: `Supply an amount of DAI into the cDAI market. The amount is in DAI, e.g. 25.5.
Use --max to supply your whole DAI balance. The market must be enabled first with
'dai-supply approve'.

Examples:
  dai-supply supply 100
  dai-supply supply 0.25 --yes
  dai-supply supply --max`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSupply,
}

func init() {
	rootCmd.AddCommand(supplyCmd)

	supplyCmd.Flags().BoolVar(&supplyMax, "max", false, "Supply the whole DAI balance")
	supplyCmd.Flags().BoolVarP(&supplyYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runSupply(cmd *cobra.Command, args []string) error {
	if supplyMax == (len(args) == 1) {
		return fmt.Errorf("give either an amount or --max")
	}

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

	if !a.session.State().Approved {
		return fmt.Errorf("the market is not enabled for your DAI yet, run 'dai-supply approve' first")
	}

	if supplyMax {
		a.session.SetMax()
	} else {
		a.session.SetInput(args[0])
	}

	input := a.session.State().Input
	if !supplyYes && !a.jsonOutput && input != "" {
		fmt.Printf("\nSupplying %s DAI from %s into %s.\n",
			color.YellowString(input),
			color.CyanString(a.session.State().Account.Hex()),
			color.CyanString(a.cfg.MarketAddress))
		if !confirm("Send the supply transaction?") {
			color.Yellow("\nSupply cancelled")
			return nil
		}
	}

	err = a.withSpinner(" Waiting for the supply transaction to be mined...", func() error {
		return a.session.Supply(ctx)
	})
	if err != nil {
		if errors.Is(err, dapp.ErrInvalidAmount) {
			if msg := a.session.State().InputError; msg != "" {
				fmt.Printf("\n  %s\n", color.RedString(msg))
			}
		}
		printTxHint(a)
		return err
	}

	st := a.session.State()
	if a.jsonOutput {
		return printJSON(st)
	}

	printSuccess(fmt.Sprintf("Supplied %s DAI", input))
	printTxHint(a)
	displayState(st, nil, a.cfg.ChainID)
	return nil
}
