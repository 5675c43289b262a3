package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"dai-supply/pkg/dapp"
	"dai-supply/pkg/history"
	"dai-supply/pkg/journal"
	"dai-supply/pkg/units"
)

const bannerWidth = 70

func printBanner(title string) {
	fmt.Println("\n" + strings.Repeat("=", bannerWidth))
	pad := (bannerWidth - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	color.Green("%s%s", strings.Repeat(" ", pad), title)
	fmt.Println(strings.Repeat("=", bannerWidth))
}

func printJSON(v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(jsonData))
	return nil
}

func displayState(st dapp.State, supplied *decimal.Decimal, chainID int64) {
	printBanner("DAI SUPPLY")

	fmt.Printf("\n  Account:        %s\n", color.CyanString(st.Account.Hex()))
	fmt.Printf("  DAI Balance:    %s\n", color.YellowString(st.UnderlyingBalance.String()))
	fmt.Printf("  cDAI Balance:   %s\n", color.YellowString(st.MarketBalance.String()))
	if supplied != nil {
		fmt.Printf("  Supplied Value: %s DAI\n", supplied.String())
	}
	fmt.Printf("  Market Enabled: %s\n", approvalLabel(st.Approved))

	if st.LastTx != "" {
		fmt.Printf("  Last Tx:        %s\n", color.HiBlackString(st.LastTx))
		if link := history.TxURL(chainID, st.LastTx); link != "" {
			fmt.Printf("  Explorer:       %s\n", color.BlueString(link))
		}
	}

	fmt.Println()
	displayHistory(st.History, 0)
}

func approvalLabel(approved bool) string {
	if approved {
		return color.GreenString("yes")
	}
	return color.YellowString("no (run 'dai-supply approve')")
}

// displayHistory prints at most limit transactions, all of them when limit is 0
func displayHistory(txs []history.Tx, limit int) {
	fmt.Println(strings.Repeat("-", bannerWidth))
	color.Cyan("  Transactions to the market")
	fmt.Println(strings.Repeat("-", bannerWidth))

	if len(txs) == 0 {
		fmt.Println("\n  No transactions found")
		fmt.Println()
		return
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tBLOCK\tVALUE (ETH)\tSTATUS\tHASH")
	for _, tx := range txs {
		status := color.GreenString("ok")
		if tx.Failed() {
			status = color.RedString("failed")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			formatTxTime(tx),
			tx.BlockNumber,
			weiToEther(tx.Value),
			status,
			tx.Hash,
		)
	}
	w.Flush()
	fmt.Println()
}

func formatTxTime(tx history.Tx) string {
	ts := tx.Time()
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04:05")
}

func weiToEther(value string) string {
	wei, err := decimal.NewFromString(value)
	if err != nil {
		return value
	}
	return units.FromRaw(wei.BigInt(), 18).String()
}

func displayJournal(entries []*journal.Entry, chainID int64) {
	printBanner("TRANSACTION JOURNAL")

	if len(entries) == 0 {
		fmt.Println("\n  No transactions recorded")
		fmt.Println()
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  CREATED\tKIND\tAMOUNT\tSTATUS\tHASH")
	for _, e := range entries {
		amount := e.Amount
		if amount == "" {
			amount = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			e.Created.Local().Format("2006-01-02 15:04:05"),
			e.Kind,
			amount,
			coloredStatus(e.Status),
			e.Hash,
		)
	}
	w.Flush()

	for _, e := range entries {
		if e.Status == journal.StatusFailed && e.Error != "" {
			fmt.Printf("\n  %s %s", color.RedString(shortHash(e.Hash)), e.Error)
		}
	}

	if pending := pendingLinks(entries, chainID); len(pending) > 0 {
		fmt.Println("\n\n  Pending on explorer:")
		for _, link := range pending {
			fmt.Printf("    %s\n", color.BlueString(link))
		}
	}
	fmt.Println()
}

func pendingLinks(entries []*journal.Entry, chainID int64) []string {
	var links []string
	for _, e := range entries {
		if !e.IsPending() {
			continue
		}
		if link := history.TxURL(chainID, e.Hash); link != "" {
			links = append(links, link)
		}
	}
	return links
}

func coloredStatus(status journal.Status) string {
	switch status {
	case journal.StatusConfirmed:
		return color.GreenString(string(status))
	case journal.StatusFailed:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-6:]
}
