package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dai-supply/config"
	"dai-supply/pkg/dapp"
	"dai-supply/pkg/history"
	"dai-supply/pkg/journal"
	"dai-supply/pkg/logging"
	"dai-supply/pkg/wallet"
)

const explorerRetryDelay = 500 * time.Millisecond

// app bundles what every command needs
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	wallet  *wallet.KeyWallet
	journal *journal.Journal
	session *dapp.Session

	jsonOutput bool
	verbose    bool
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, verbose)
	if err != nil {
		return nil, err
	}

	for name, addr := range map[string]string{"token": cfg.TokenAddress, "market": cfg.MarketAddress} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid %s address: %s", name, addr)
		}
	}

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		journal:    j,
		jsonOutput: jsonOutput,
		verbose:    verbose,
	}

	opts := dapp.Options{
		ChainID:       cfg.ChainID,
		TokenAddress:  common.HexToAddress(cfg.TokenAddress),
		MarketAddress: common.HexToAddress(cfg.MarketAddress),
		Journal:       j,
		Logger:        logger,
	}

	if cfg.ExplorerAPIURL != "" {
		opts.History = history.NewClient(cfg.ExplorerAPIURL, cfg.ExplorerAPIKey, cfg.ExplorerRetryMax, explorerRetryDelay)
	}

	w, err := wallet.Open(ctx, wallet.Config{
		RPCURL:     cfg.RPCURL,
		PrivateKey: cfg.PrivateKey,
		GasLimit:   cfg.GasLimit,
		GasPrice:   cfg.GasPrice,
	})
	switch {
	case errors.Is(err, wallet.ErrNoWallet):
		// Leave opts.Wallet nil, Connect reports it
	case err != nil:
		return nil, err
	default:
		a.wallet = w
		opts.Wallet = w
	}

	a.session = dapp.NewSession(opts)
	return a, nil
}

// connect runs Connect behind a spinner
func (a *app) connect(ctx context.Context) error {
	return a.withSpinner(" Connecting wallet...", func() error {
		return a.session.Connect(ctx)
	})
}

func (a *app) withSpinner(suffix string, fn func() error) error {
	if a.jsonOutput {
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = suffix
	s.Start()
	err := fn()
	s.Stop()
	return err
}

func (a *app) Close() {
	if a.wallet != nil {
		a.wallet.Close()
	}
	_ = a.logger.Sync()
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
