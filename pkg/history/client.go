package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// Tx is one entry of an account's transaction list as reported by the indexer.
// Values are kept as the indexer's strings.
type Tx struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	BlockNumber string `json:"blockNumber"`
	TimeStamp   string `json:"timeStamp"`
	IsError     string `json:"isError"`
}

// Failed reports whether the transaction reverted.
func (t Tx) Failed() bool {
	return t.IsError == "1"
}

// Time returns the block time, zero if the indexer sent none.
func (t Tx) Time() time.Time {
	sec, err := strconv.ParseInt(t.TimeStamp, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

type txListResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Client queries an Etherscan-compatible account API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a new indexer client.
func NewClient(baseURL, apiKey string, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// TxList returns the normal transactions sent from or to address, newest first.
func (c *Client) TxList(ctx context.Context, address common.Address) ([]Tx, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address.Hex())
	q.Set("startblock", "0")
	q.Set("endblock", "99999999")
	q.Set("sort", "desc")
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	body, err := c.get(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp txListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing txlist response: %w", err)
	}

	if resp.Status != "1" {
		// Etherscan reports an empty history as status 0
		if strings.HasPrefix(resp.Message, "No transactions found") {
			return []Tx{}, nil
		}
		var detail string
		_ = json.Unmarshal(resp.Result, &detail)
		return nil, fmt.Errorf("indexer error: %s %s", resp.Message, detail)
	}

	var txs []Tx
	if err := json.Unmarshal(resp.Result, &txs); err != nil {
		return nil, fmt.Errorf("parsing txlist result: %w", err)
	}
	return txs, nil
}

// FilterTo keeps the transactions addressed to addr.
func FilterTo(txs []Tx, addr common.Address) []Tx {
	return lo.Filter(txs, func(tx Tx, _ int) bool {
		return common.IsHexAddress(tx.To) && common.HexToAddress(tx.To) == addr
	})
}

// get performs a GET request with retry on 429.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries+1; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 from indexer (attempt %d/%d)", attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(c.baseDelay * time.Duration(attempt+1)):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, fmt.Errorf("HTTP %d from indexer: %s", resp.StatusCode, string(body))
	}

	return nil, lastErr
}
