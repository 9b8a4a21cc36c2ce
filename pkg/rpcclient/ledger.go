// Package rpcclient provides HTTP-backed implementations of the engine's
// two out-of-scope collaborators (internal/ledger.Ledger and
// internal/exchange.Exchange), grounded on the teacher's pkg/lcd.Client:
// a thin base-URL-plus-http.Client wrapper that JSON-decodes responses
// and turns non-2xx statuses into errors.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
)

// LedgerClient calls out to the external fungible-token ledger service the
// engine escrows its balance on.
type LedgerClient struct {
	base   string
	client *http.Client
}

// NewLedgerClient constructs a LedgerClient against base.
func NewLedgerClient(base string, httpClient *http.Client) *LedgerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &LedgerClient{base: strings.TrimRight(base, "/"), client: httpClient}
}

// Transfer implements ledger.Ledger.
func (c *LedgerClient) Transfer(ctx context.Context, recipient lockup.AccountID, amount money.Balance) error {
	body, err := json.Marshal(struct {
		Recipient lockup.AccountID `json:"recipient"`
		Amount    money.Balance    `json:"amount"`
	}{recipient, amount})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/transfer", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rpcclient: ledger transfer: %s: %s", resp.Status, string(b))
	}
	return nil
}
