package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"dai-supply/pkg/dapp"
)

var connectCmd = &cobra.Command{
	Use:     "connect",
	Aliases: []string{"balances"},
	Short:   "Connect the wallet and show balances",
	Long: `Connect the configured wallet, check the network and show the DAI and cDAI
balances, whether the market may spend your DAI and your recent market transactions.

Examples:
  dai-supply connect
  dai-supply balances --json`,
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

// connectOutput is the JSON shape of connect
type connectOutput struct {
	dapp.State
	SuppliedValue *decimal.Decimal `json:"supplied_value,omitempty"`
}

func runConnect(cmd *cobra.Command, args []string) error {
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

	var supplied *decimal.Decimal
	if value, err := a.session.SuppliedValue(ctx); err == nil {
		supplied = &value
	}

	st := a.session.State()
	if a.jsonOutput {
		return printJSON(connectOutput{State: st, SuppliedValue: supplied})
	}
	displayState(st, supplied, a.cfg.ChainID)
	return nil
}

// commandContext is cancelled on Ctrl+C
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}
