package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumera-labs/lockup-vesting/internal/exchange"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
)

// ExchangeClient calls out to the external AMM exchange service that owns
// LP pools.
type ExchangeClient struct {
	base   string
	client *http.Client
}

// NewExchangeClient constructs an ExchangeClient against base.
func NewExchangeClient(base string, httpClient *http.Client) *ExchangeClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &ExchangeClient{base: strings.TrimRight(base, "/"), client: httpClient}
}

// GetPool implements exchange.Exchange.
func (c *ExchangeClient) GetPool(ctx context.Context, poolID exchange.PoolID) (exchange.PoolInfo, error) {
	u := c.base + "/pools/" + strconv.FormatUint(uint64(poolID), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return exchange.PoolInfo{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return exchange.PoolInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return exchange.PoolInfo{}, fmt.Errorf("rpcclient: get_pool: %s: %s", resp.Status, string(b))
	}
	var out struct {
		TokenAccountIDs   []lockup.AccountID `json:"token_account_ids"`
		Amounts           []money.Balance    `json:"amounts"`
		TotalFee          uint32             `json:"total_fee"`
		SharesTotalSupply money.Balance      `json:"shares_total_supply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return exchange.PoolInfo{}, err
	}
	return exchange.PoolInfo{
		TokenAccountIDs:   out.TokenAccountIDs,
		Amounts:           out.Amounts,
		TotalFee:          out.TotalFee,
		SharesTotalSupply: out.SharesTotalSupply,
	}, nil
}

// Transfer implements exchange.Exchange.
func (c *ExchangeClient) Transfer(ctx context.Context, poolID exchange.PoolID, receiver lockup.AccountID, amount money.Balance) error {
	_, err := c.transfer(ctx, "/pools/"+strconv.FormatUint(uint64(poolID), 10)+"/transfer", receiver, amount, "")
	return err
}

// TransferCall implements exchange.Exchange.
func (c *ExchangeClient) TransferCall(ctx context.Context, poolID exchange.PoolID, receiver lockup.AccountID, amount money.Balance, msg string) (money.Balance, error) {
	return c.transfer(ctx, "/pools/"+strconv.FormatUint(uint64(poolID), 10)+"/transfer_call", receiver, amount, msg)
}

func (c *ExchangeClient) transfer(ctx context.Context, path string, receiver lockup.AccountID, amount money.Balance, msg string) (money.Balance, error) {
	body, err := json.Marshal(struct {
		Receiver lockup.AccountID `json:"receiver"`
		Amount   money.Balance    `json:"amount"`
		Msg      string           `json:"msg,omitempty"`
	}{receiver, amount, msg})
	if err != nil {
		return money.Balance{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return money.Balance{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return money.Balance{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return money.Balance{}, fmt.Errorf("rpcclient: exchange transfer: %s: %s", resp.Status, string(b))
	}
	var out struct {
		Unused money.Balance `json:"unused"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return money.Balance{}, nil
	}
	return out.Unused, nil
}
