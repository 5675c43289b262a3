package cmd

import (

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show your transactions to the cDAI market",
	Long: `List the account's transactions addressed to the cDAI market, newest first,
as reported by the block explorer API.

Examples:
  dai-supply history
  dai-supply history --limit 5`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of transactions to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
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

	txs := a.session.State().History
	if a.jsonOutput {
		if historyLimit > 0 && len(txs) > historyLimit {
			txs = txs[:historyLimit]
		}
		return printJSON(txs)
	}

	printBanner("MARKET HISTORY")
	displayHistory(txs, historyLimit)
	return nil
}
