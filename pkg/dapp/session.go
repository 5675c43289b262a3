package dapp

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dai-supply/pkg/history"
	"dai-supply/pkg/journal"
	"dai-supply/pkg/units"
)

// State is what the user sees. It reflects the last successful external call and is
// reset on every Connect.
type State struct {
	Account           common.Address  `json:"account"`
	Connected         bool            `json:"connected"`
	UnderlyingBalance decimal.Decimal `json:"underlying_balance"`
	MarketBalance     decimal.Decimal `json:"market_balance"`
	BalancesLoaded    bool            `json:"balances_loaded"`
	Allowance         *big.Int        `json:"allowance,omitempty"`
	Approved          bool            `json:"approved"`
	Pending           bool            `json:"pending"`
	Input             string          `json:"input"`
	InputError        string          `json:"input_error,omitempty"`
	History           []history.Tx    `json:"history"`
	LastTx            string          `json:"last_tx,omitempty"`
}

// Options configures a Session
type Options struct {
	Wallet        Wallet // nil when no wallet is available
	ChainID       int64  // network the wallet must be on
	TokenAddress  common.Address
	MarketAddress common.Address
	Binder        Binder        // defaults to ContractBinder
	History       HistorySource // optional
	Journal       Recorder      // optional
	Logger        *zap.Logger
}

// Session drives connect, approve and supply against one wallet. Operations run
// one at a time; a Session is not safe for concurrent use.
type Session struct {
	opts   Options
	logger *zap.Logger

	underlying Token
	market     Market

	state State
}

// NewSession creates a disconnected session
func NewSession(opts Options) *Session {
	if opts.Binder == nil {
		opts.Binder = ContractBinder(opts.TokenAddress, opts.MarketAddress)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		opts:   opts,
		logger: logger,
	}
}

// State returns a copy of the current view state
func (s *Session) State() State {
	st := s.state
	st.History = append([]history.Tx(nil), s.state.History...)
	if s.state.Allowance != nil {
		st.Allowance = new(big.Int).Set(s.state.Allowance)
	}
	return st
}

// Connect asks the wallet for an account, checks the network, binds the contracts
// and loads balances.
func (s *Session) Connect(ctx context.Context) error {
	if s.opts.Wallet == nil {
		return ErrNoWallet
	}

	accounts, err := s.opts.Wallet.RequestAccounts(ctx)
	if err != nil {
		s.logger.Error("request accounts failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if len(accounts) == 0 {
		return fmt.Errorf("%w: wallet returned no accounts", ErrConnect)
	}

	chainID, err := s.opts.Wallet.ChainID(ctx)
	if err != nil {
		s.logger.Error("chain id lookup failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if chainID.Cmp(big.NewInt(s.opts.ChainID)) != 0 {
		return &NetworkError{Expected: s.opts.ChainID, Actual: chainID}
	}

	s.state = State{
		Account:   accounts[0],
		Connected: true,
	}
	s.underlying, s.market = s.opts.Binder(s.opts.Wallet.Backend())

	s.logger.Info("wallet connected",
		zap.String("account", accounts[0].Hex()),
		zap.String("chain_id", chainID.String()))

	s.checkUnderlying(ctx)

	return s.FetchBalances(ctx)
}

// checkUnderlying warns when the configured token is not what the market accepts.
func (s *Session) checkUnderlying(ctx context.Context) {
	underlying, err := s.market.Underlying(ctx)
	if err != nil {
		s.logger.Warn("could not read market underlying", zap.Error(err))
		return
	}
	if underlying != s.underlying.Address() {
		s.logger.Warn("market underlying differs from configured token",
			zap.String("market_underlying", underlying.Hex()),
			zap.String("token", s.underlying.Address().Hex()))
	}
}

// FetchBalances reads both balances and the market's allowance, then refreshes the
// history.
func (s *Session) FetchBalances(ctx context.Context) error {
	if !s.state.Connected {
		return ErrNotConnected
	}
	account := s.state.Account

	marketBalance, err := s.readBalance(ctx, s.market, account)
	if err != nil {
		return s.fail("fetch market balance", err)
	}

	underlyingBalance, err := s.readBalance(ctx, s.underlying, account)
	if err != nil {
		return s.fail("fetch token balance", err)
	}

	allowance, err := s.underlying.Allowance(ctx, account, s.market.Address())
	if err != nil {
		return s.fail("fetch allowance", err)
	}

	s.state.MarketBalance = marketBalance
	s.state.UnderlyingBalance = underlyingBalance
	s.state.BalancesLoaded = true
	s.state.Allowance = allowance
	s.state.Approved = allowance.Sign() != 0

	return s.FetchHistory(ctx)
}

func (s *Session) readBalance(ctx context.Context, token Token, account common.Address) (decimal.Decimal, error) {
	raw, err := token.BalanceOf(ctx, account)
	if err != nil {
		return decimal.Zero, err
	}
	decimals, err := token.Decimals(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return units.FromRaw(raw, decimals), nil
}

// FetchHistory loads the account's transactions addressed to the market. Without a
// history source it leaves the list empty.
func (s *Session) FetchHistory(ctx context.Context) error {
	if !s.state.Connected {
		return ErrNotConnected
	}
	if s.opts.History == nil {
		return nil
	}

	txs, err := s.opts.History.TxList(ctx, s.state.Account)
	if err != nil {
		return s.fail("fetch history", err)
	}

	s.state.History = history.FilterTo(txs, s.market.Address())
	return nil
}

// Approve grants the market an unlimited allowance on the underlying token and waits
// for it to be mined.
func (s *Session) Approve(ctx context.Context) error {
	if !s.state.Connected {
		return ErrNotConnected
	}

	opts, err := s.opts.Wallet.Transactor(ctx)
	if err != nil {
		return s.fail("create transactor", err)
	}

	tx, err := s.underlying.Approve(opts, s.market.Address(), math.MaxBig256)
	if err != nil {
		return s.fail("approve", err)
	}

	if err := s.await(ctx, journal.KindApprove, tx, ""); err != nil {
		return err
	}

	// The allowance is on-chain now even if the history refresh fails
	s.state.Approved = true
	return s.FetchHistory(ctx)
}

// SetInput stores the amount the user typed
func (s *Session) SetInput(amount string) {
	s.state.Input = amount
}

// SetMax copies the displayed token balance into the input. A zero or unknown balance
// leaves the input untouched.
func (s *Session) SetMax() {
	if !s.state.BalancesLoaded || s.state.UnderlyingBalance.IsZero() {
		return
	}
	s.state.Input = s.state.UnderlyingBalance.String()
}

// Supply validates the input, converts it to the token's integer unit and mints it
// into the market.
func (s *Session) Supply(ctx context.Context) error {
	amount, err := units.ParseAmount(s.state.Input)
	if err != nil || !amount.IsPositive() {
		s.state.InputError = "Please enter a valid amount"
		return ErrInvalidAmount
	}

	if !s.state.Connected {
		return ErrNotConnected
	}

	decimals, err := s.underlying.Decimals(ctx)
	if err != nil {
		return s.fail("fetch token decimals", err)
	}

	raw, err := units.ToRaw(amount, decimals)
	if err != nil {
		if errors.Is(err, units.ErrTooLarge) {
			s.state.InputError = "Amount is too large"
		} else {
			s.state.InputError = fmt.Sprintf("Amount can have at most %d decimal places", decimals)
		}
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	s.state.InputError = ""

	opts, err := s.opts.Wallet.Transactor(ctx)
	if err != nil {
		return s.fail("create transactor", err)
	}

	tx, err := s.market.Mint(opts, raw)
	if err != nil {
		return s.fail("mint", err)
	}

	if err := s.await(ctx, journal.KindSupply, tx, amount.String()); err != nil {
		return err
	}

	return s.FetchBalances(ctx)
}

// SuppliedValue converts the market balance into underlying tokens at the stored
// exchange rate.
func (s *Session) SuppliedValue(ctx context.Context) (decimal.Decimal, error) {
	if !s.state.Connected {
		return decimal.Zero, ErrNotConnected
	}

	raw, err := s.market.BalanceOf(ctx, s.state.Account)
	if err != nil {
		return decimal.Zero, s.fail("fetch market balance", err)
	}
	rate, err := s.market.ExchangeRateStored(ctx)
	if err != nil {
		return decimal.Zero, s.fail("fetch exchange rate", err)
	}
	decimals, err := s.underlying.Decimals(ctx)
	if err != nil {
		return decimal.Zero, s.fail("fetch token decimals", err)
	}

	// rate is scaled by 1e18
	underlyingRaw := new(big.Int).Mul(raw, rate)
	underlyingRaw.Quo(underlyingRaw, math.BigPow(10, 18))

	return units.FromRaw(underlyingRaw, decimals), nil
}

// await marks the session pending until tx is mined.
func (s *Session) await(ctx context.Context, kind journal.Kind, tx *types.Transaction, amount string) error {
	s.state.Pending = true
	s.state.LastTx = tx.Hash().Hex()
	defer func() { s.state.Pending = false }()

	s.logger.Info("transaction sent", zap.String("kind", string(kind)), zap.String("hash", tx.Hash().Hex()))

	var entry *journal.Entry
	if s.opts.Journal != nil {
		e, err := s.opts.Journal.Record(kind, tx.Hash(), s.state.Account, amount)
		if err != nil {
			s.logger.Warn("could not journal transaction", zap.Error(err))
		}
		entry = e
	}

	receipt, err := s.opts.Wallet.WaitMined(ctx, tx)
	if err != nil {
		// Cancelled waits stay pending in the journal
		if entry != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.journalFail(entry.ID, err)
		}
		return s.fail("wait for "+string(kind), err)
	}

	if entry != nil {
		if err := s.opts.Journal.Resolve(entry.ID, receipt); err != nil {
			s.logger.Warn("could not update journal", zap.Error(err))
		}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		s.logger.Error("transaction reverted", zap.String("hash", tx.Hash().Hex()))
		return fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}

	s.logger.Info("transaction confirmed",
		zap.String("kind", string(kind)),
		zap.String("hash", tx.Hash().Hex()),
		zap.Stringer("block", receipt.BlockNumber))
	return nil
}

func (s *Session) journalFail(id string, reason error) {
	if err := s.opts.Journal.Fail(id, reason); err != nil {
		s.logger.Warn("could not update journal", zap.Error(err))
	}
}

// fail logs an unexpected failure and wraps it with the step that failed.
func (s *Session) fail(step string, err error) error {
	s.logger.Error(step+" failed", zap.Error(err))
	return fmt.Errorf("failed to %s: %w", step, err)
}
