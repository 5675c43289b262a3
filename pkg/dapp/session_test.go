package dapp

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"dai-supply/pkg/history"
	"dai-supply/pkg/journal"
)

var (
	testAccount = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenAddr   = common.HexToAddress("0x4F96Fe3b7A6Cf9725f59d353F723c1bDb64CA6Aa")
	marketAddr  = common.HexToAddress("0xF0d0EB522cfa50B716B3b1604C4F0fA6f04376AD")
)

type fakeWallet struct {
	accounts   []common.Address
	accountErr error
	chainID    int64
	receipt    *types.Receipt
	waitErr    error
	nonce      uint64
	waited     int
	pendingAt  []bool // Session pending flag observed while waiting
	session    *Session
}

func (w *fakeWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return w.accounts, w.accountErr
}

func (w *fakeWallet) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(w.chainID), nil
}

func (w *fakeWallet) Backend() bind.ContractBackend { return nil }

func (w *fakeWallet) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: testAccount, Context: ctx}, nil
}

func (w *fakeWallet) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	w.waited++
	if w.session != nil {
		w.pendingAt = append(w.pendingAt, w.session.State().Pending)
	}
	if w.waitErr != nil {
		return nil, w.waitErr
	}
	return w.receipt, nil
}

func (w *fakeWallet) newTx() *types.Transaction {
	w.nonce++
	return types.NewTransaction(w.nonce, marketAddr, big.NewInt(0), 100000, big.NewInt(1), nil)
}

type fakeToken struct {
	address   common.Address
	balance   *big.Int
	decimals  uint8
	allowance *big.Int
	wallet    *fakeWallet

	calls       int
	approvedTo  common.Address
	approvedAmt *big.Int
	minted      []*big.Int
}

func (t *fakeToken) Address() common.Address { return t.address }

func (t *fakeToken) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	t.calls++
	return t.balance, nil
}

func (t *fakeToken) Decimals(ctx context.Context) (uint8, error) {
	t.calls++
	return t.decimals, nil
}

func (t *fakeToken) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	t.calls++
	return t.allowance, nil
}

func (t *fakeToken) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	t.calls++
	t.approvedTo = spender
	t.approvedAmt = amount
	return t.wallet.newTx(), nil
}

type fakeMarket struct {
	fakeToken
	rate *big.Int
}

func (m *fakeMarket) Mint(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	m.calls++
	m.minted = append(m.minted, amount)
	return m.wallet.newTx(), nil
}

func (m *fakeMarket) Underlying(ctx context.Context) (common.Address, error) {
	return tokenAddr, nil
}

func (m *fakeMarket) ExchangeRateStored(ctx context.Context) (*big.Int, error) {
	m.calls++
	return m.rate, nil
}

type fakeHistory struct {
	txs   []history.Tx
	err   error
	calls int
}

func (h *fakeHistory) TxList(ctx context.Context, address common.Address) ([]history.Tx, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	return h.txs, nil
}

type fixture struct {
	wallet  *fakeWallet
	token   *fakeToken
	market  *fakeMarket
	history *fakeHistory
	session *Session
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad number " + s)
	}
	return v
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	w := &fakeWallet{
		accounts: []common.Address{testAccount},
		chainID:  42,
		receipt:  &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)},
	}
	token := &fakeToken{
		address:   tokenAddr,
		balance:   wei("12500000000000000000"),
		decimals:  18,
		allowance: big.NewInt(0),
		wallet:    w,
	}
	market := &fakeMarket{
		fakeToken: fakeToken{
			address:   marketAddr,
			balance:   wei("5000000000"),
			decimals:  8,
			allowance: big.NewInt(0),
			wallet:    w,
		},
		rate: wei("200000000000000000000000000"),
	}
	h := &fakeHistory{txs: []history.Tx{
		{Hash: "0x01", To: "0xf0d0eb522cfa50b716b3b1604c4f0fa6f04376ad"},
		{Hash: "0x02", To: "0x4f96fe3b7a6cf9725f59d353f723c1bdb64ca6aa"},
	}}

	s := NewSession(Options{
		Wallet:        w,
		ChainID:       42,
		TokenAddress:  tokenAddr,
		MarketAddress: marketAddr,
		Binder: func(bind.ContractBackend) (Token, Market) {
			return token, market
		},
		History: h,
	})
	w.session = s

	return &fixture{wallet: w, token: token, market: market, history: h, session: s}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	if err := f.session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: unexpected error: %v", err)
	}
}

func TestConnectWithoutWallet(t *testing.T) {
	s := NewSession(Options{ChainID: 42})

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrNoWallet) {
		t.Fatalf("err = %v, want ErrNoWallet", err)
	}
	if s.State().Connected {
		t.Error("session should stay disconnected")
	}
}

func TestConnectWrongNetwork(t *testing.T) {
	f := newFixture(t)
	f.wallet.chainID = 1

	err := f.session.Connect(context.Background())
	if !errors.Is(err, ErrWrongNetwork) {
		t.Fatalf("err = %v, want ErrWrongNetwork", err)
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err should be a *NetworkError")
	}
	if netErr.Expected != 42 || netErr.Actual.Int64() != 1 {
		t.Errorf("network error = %+v", netErr)
	}
	if f.session.State().Connected {
		t.Error("session should stay disconnected")
	}
	if f.token.calls != 0 || f.market.calls != 0 {
		t.Error("no contract call expected on wrong network")
	}
}

func TestConnectAccountsRejected(t *testing.T) {
	f := newFixture(t)
	f.wallet.accountErr = errors.New("user rejected the request")

	err := f.session.Connect(context.Background())
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("err = %v, want ErrConnect", err)
	}
}

func TestConnectNoAccounts(t *testing.T) {
	f := newFixture(t)
	f.wallet.accounts = nil

	if err := f.session.Connect(context.Background()); !errors.Is(err, ErrConnect) {
		t.Fatalf("err = %v, want ErrConnect", err)
	}
}

func TestConnectLoadsState(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	st := f.session.State()
	if !st.Connected || st.Account != testAccount {
		t.Errorf("account = %s connected=%v", st.Account.Hex(), st.Connected)
	}
	if !st.UnderlyingBalance.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("underlying balance = %s, want 12.5", st.UnderlyingBalance)
	}
	if !st.MarketBalance.Equal(decimal.RequireFromString("50")) {
		t.Errorf("market balance = %s, want 50", st.MarketBalance)
	}
	if st.Approved {
		t.Error("approved should be false with zero allowance")
	}
	if len(st.History) != 1 || st.History[0].Hash != "0x01" {
		t.Errorf("history = %+v, want only txs to the market", st.History)
	}
}

func TestDisplayedBalanceIsRawOverDecimals(t *testing.T) {
	tests := []struct {
		raw      string
		decimals uint8
		want     string
	}{
		{"1", 18, "0.000000000000000001"},
		{"123456789", 6, "123.456789"},
		{"100", 0, "100"},
		{"0", 18, "0"},
	}

	for _, tt := range tests {
		f := newFixture(t)
		f.token.balance = wei(tt.raw)
		f.token.decimals = tt.decimals
		f.connect(t)

		got := f.session.State().UnderlyingBalance
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("raw %s / 10^%d = %s, want %s", tt.raw, tt.decimals, got, tt.want)
		}
	}
}

func TestApprovedIffAllowanceNonZero(t *testing.T) {
	tests := []struct {
		allowance *big.Int
		want      bool
	}{
		{big.NewInt(0), false},
		{big.NewInt(1), true},
		{math.MaxBig256, true},
	}

	for _, tt := range tests {
		f := newFixture(t)
		f.token.allowance = tt.allowance
		f.connect(t)

		if got := f.session.State().Approved; got != tt.want {
			t.Errorf("allowance %s: approved = %v, want %v", tt.allowance, got, tt.want)
		}
	}
}

func TestApprovalFollowsLastObservedAllowance(t *testing.T) {
	f := newFixture(t)
	f.token.allowance = big.NewInt(10)
	f.connect(t)
	if !f.session.State().Approved {
		t.Fatal("expected approved after non-zero allowance")
	}

	f.token.allowance = big.NewInt(0)
	if err := f.session.FetchBalances(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.session.State().Approved {
		t.Error("approved should follow the latest allowance")
	}
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	historyCalls := f.history.calls

	if err := f.session.Approve(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.token.approvedTo != marketAddr {
		t.Errorf("spender = %s, want market %s", f.token.approvedTo.Hex(), marketAddr.Hex())
	}
	if f.token.approvedAmt.Cmp(math.MaxBig256) != 0 {
		t.Errorf("approved amount = %s, want max uint256", f.token.approvedAmt)
	}

	st := f.session.State()
	if !st.Approved {
		t.Error("approved should be true after confirmation")
	}
	if st.Pending {
		t.Error("pending should be cleared after confirmation")
	}
	if len(f.wallet.pendingAt) != 1 || !f.wallet.pendingAt[0] {
		t.Errorf("pending while waiting = %v, want [true]", f.wallet.pendingAt)
	}
	if f.history.calls != historyCalls+1 {
		t.Errorf("history refreshed %d times, want 1", f.history.calls-historyCalls)
	}
}

func TestApproveReverted(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.wallet.receipt = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(1)}

	err := f.session.Approve(context.Background())
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("err = %v, want ErrReverted", err)
	}
	if f.session.State().Approved {
		t.Error("approved should stay false on revert")
	}
}

func TestApproveNotConnected(t *testing.T) {
	f := newFixture(t)
	if err := f.session.Approve(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestSupplyRejectsInvalidInput(t *testing.T) {
	for _, input := range []string{"", "0", "-1", "abc", "0.000"} {
		f := newFixture(t)
		f.connect(t)
		callsBefore := f.token.calls + f.market.calls

		f.session.SetInput(input)
		err := f.session.Supply(context.Background())
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("input %q: err = %v, want ErrInvalidAmount", input, err)
		}
		if msg := f.session.State().InputError; msg != "Please enter a valid amount" {
			t.Errorf("input %q: input error = %q", input, msg)
		}
		if got := f.token.calls + f.market.calls; got != callsBefore {
			t.Errorf("input %q: %d contract calls made, want none", input, got-callsBefore)
		}
		if len(f.market.minted) != 0 || f.wallet.waited != 0 {
			t.Errorf("input %q: no transaction expected", input)
		}
	}
}

func TestSupply(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.session.SetInput("1.5")
	if err := f.session.Supply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.market.minted) != 1 {
		t.Fatalf("mint calls = %d, want 1", len(f.market.minted))
	}
	if got := f.market.minted[0]; got.Cmp(wei("1500000000000000000")) != 0 {
		t.Errorf("minted = %s, want 1500000000000000000", got)
	}

	st := f.session.State()
	if st.InputError != "" {
		t.Errorf("input error = %q, want empty", st.InputError)
	}
	if st.Pending {
		t.Error("pending should be cleared after confirmation")
	}
	if len(f.wallet.pendingAt) != 1 || !f.wallet.pendingAt[0] {
		t.Errorf("pending while waiting = %v, want [true]", f.wallet.pendingAt)
	}
}

func TestSupplyClearsPreviousError(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	f.session.SetInput("0")
	_ = f.session.Supply(context.Background())

	f.session.SetInput("2")
	if err := f.session.Supply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg := f.session.State().InputError; msg != "" {
		t.Errorf("input error = %q, want cleared", msg)
	}
}

func TestSupplyTooPrecise(t *testing.T) {
	f := newFixture(t)
	f.token.decimals = 2
	f.connect(t)

	f.session.SetInput("0.001")
	err := f.session.Supply(context.Background())
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if len(f.market.minted) != 0 {
		t.Error("no mint expected")
	}
	if f.session.State().InputError == "" {
		t.Error("expected an input error message")
	}
}

func TestSupplyTooLarge(t *testing.T) {
	inputs := []string{
		// one wei above 2^256-1 at 18 decimals
		"115792089237316195423570985008687907853269984665640564039457.584007913129639936",
		"1e900000000",
	}

	for _, input := range inputs {
		f := newFixture(t)
		f.connect(t)

		f.session.SetInput(input)
		err := f.session.Supply(context.Background())
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Supply(%.20s...) err = %v, want ErrInvalidAmount", input, err)
		}
		if len(f.market.minted) != 0 {
			t.Errorf("Supply(%.20s...) minted %v, want no mint", input, f.market.minted)
		}
		if msg := f.session.State().InputError; msg != "Amount is too large" {
			t.Errorf("input error = %q, want %q", msg, "Amount is too large")
		}
	}
}

func TestApproveKeepsFlagWhenHistoryFails(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.history.err = errors.New("indexer down")

	err := f.session.Approve(context.Background())
	if err == nil {
		t.Fatal("expected history error, got nil")
	}
	if !f.session.State().Approved {
		t.Error("approved should be true once the approve transaction is confirmed")
	}
}

func TestSupplyWaitFailureClearsPending(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.wallet.waitErr = errors.New("connection reset")

	f.session.SetInput("1")
	if err := f.session.Supply(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if f.session.State().Pending {
		t.Error("pending should be cleared when the wait fails")
	}
}

func TestSetMax(t *testing.T) {
	f := newFixture(t)
	f.token.balance = wei("1234567890123456789")
	f.connect(t)

	f.session.SetMax()
	st := f.session.State()
	if st.Input != st.UnderlyingBalance.String() {
		t.Errorf("input = %q, want displayed balance %q", st.Input, st.UnderlyingBalance.String())
	}
	if st.Input != "1.234567890123456789" {
		t.Errorf("input = %q, want 1.234567890123456789", st.Input)
	}

	// The copied value supplies exactly the full raw balance
	if err := f.session.Supply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.market.minted[0]; got.Cmp(wei("1234567890123456789")) != 0 {
		t.Errorf("minted = %s, want full balance", got)
	}
}

func TestSetMaxZeroBalance(t *testing.T) {
	f := newFixture(t)
	f.token.balance = big.NewInt(0)
	f.connect(t)

	f.session.SetInput("3")
	f.session.SetMax()
	if got := f.session.State().Input; got != "3" {
		t.Errorf("input = %q, want untouched 3", got)
	}
}

func TestSetMaxBeforeConnect(t *testing.T) {
	f := newFixture(t)
	f.session.SetMax()
	if got := f.session.State().Input; got != "" {
		t.Errorf("input = %q, want empty", got)
	}
}

func TestReconnectResetsState(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	f.session.SetInput("0")
	_ = f.session.Supply(context.Background())

	f.connect(t)
	st := f.session.State()
	if st.Input != "" || st.InputError != "" {
		t.Errorf("state not reset: input=%q error=%q", st.Input, st.InputError)
	}
}

func TestSuppliedValue(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	// 50 cDAI (5e9 raw) at 0.02 DAI per cDAI => 1 DAI
	got, err := f.session.SuppliedValue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("supplied value = %s, want 1", got)
	}
}

func TestSupplyIsJournaled(t *testing.T) {
	f := newFixture(t)
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.session.opts.Journal = j
	f.connect(t)

	f.session.SetInput("4")
	if err := f.session.Supply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := j.Entries()
	if len(entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Kind != journal.KindSupply || e.Amount != "4" || e.Status != journal.StatusConfirmed {
		t.Errorf("entry = %+v", e)
	}
	if e.Account != testAccount.Hex() {
		t.Errorf("account = %s, want %s", e.Account, testAccount.Hex())
	}
}

func TestCancelledWaitStaysPendingInJournal(t *testing.T) {
	f := newFixture(t)
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.session.opts.Journal = j
	f.connect(t)
	f.wallet.waitErr = context.Canceled

	if err := f.session.Approve(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(j.Pending()) != 1 {
		t.Errorf("pending journal entries = %d, want 1", len(j.Pending()))
	}
}
