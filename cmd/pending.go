package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dai-supply/config"
	"dai-supply/pkg/journal"
	"dai-supply/pkg/wallet"
)

var (
	watchPending  bool
	watchInterval int
	pendingOnly   bool
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show sent transactions and re-check the pending ones",
	Long: `List the approve and supply transactions sent from this machine. Transactions
still waiting for a receipt are checked against the node and updated.

Examples:
  dai-supply pending
  dai-supply pending --only-pending
  dai-supply pending --watch --interval 10`,
	Args: cobra.NoArgs,
	RunE: runPending,
}

func init() {
	rootCmd.AddCommand(pendingCmd)

	pendingCmd.Flags().BoolVarP(&watchPending, "watch", "w", false, "Keep checking until nothing is pending")
	pendingCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
	pendingCmd.Flags().BoolVar(&pendingOnly, "only-pending", false, "Only list pending transactions")
}

func runPending(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, stop := commandContext(cmd)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return err
	}

	receipts, err := wallet.DialReceipts(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer receipts.Close()

	if watchPending {
		if jsonOutput {
			return fmt.Errorf("watch mode not supported with JSON output")
		}
		watchJournal(ctx, j, receipts, cfg.ChainID)
		return nil
	}

	if _, err := j.Reconcile(ctx, receipts); err != nil {
		return err
	}

	entries := listJournal(j)
	if jsonOutput {
		return printJSON(entries)
	}
	displayJournal(entries, cfg.ChainID)
	return nil
}

func listJournal(j *journal.Journal) []*journal.Entry {
	if pendingOnly {
		return j.Pending()
	}
	return j.Entries()
}

func watchJournal(ctx context.Context, j *journal.Journal, src journal.ReceiptSource, chainID int64) {
	if watchInterval <= 0 {
		watchInterval = 5
	}

	fmt.Printf("\nWatching %s\n", color.CyanString(j.Path()))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		remaining, err := j.Reconcile(ctx, src)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayJournal(listJournal(j), chainID)
			if remaining == 0 {
				printSuccess("Nothing pending")
				return
			}
			fmt.Printf("  %s\n", color.YellowString("%d transaction(s) still pending", remaining))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
