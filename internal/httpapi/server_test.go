package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lumera-labs/lockup-vesting/internal/engine"
	"github.com/lumera-labs/lockup-vesting/internal/exchange"
	"github.com/lumera-labs/lockup-vesting/internal/ledger"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/store"
)

func bal(v uint64) money.Balance { return money.NewFromUint64(v) }

func newTestServer(t *testing.T) (*httptest.Server, *ledger.MockLedger) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctrl := gomock.NewController(t)
	l := ledger.NewMockLedger(ctrl)
	x := exchange.NewMockExchange(ctrl)

	contract, err := engine.New(s, l, x, nil)
	require.NoError(t, err)
	require.NoError(t, contract.Bootstrap("token.near", []lockup.AccountID{"admin"}, nil))

	srv := New(Config{
		Contract:   contract,
		Clock:      func() money.Timestamp { return 1_000 },
		RatePerMin: 1_000_000,
		Burst:      1_000_000,
		GitTag:     "test",
	})
	return httptest.NewServer(srv.Mux()), l
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func TestHealthzAndVersion(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/version")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		GitTag string `json:"git_tag"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "test", out.GitTag)
}

func TestFTOnTransferThenClaim_OverHTTP(t *testing.T) {
	ts, l := newTestServer(t)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/ft_on_transfer", map[string]any{
		"token_ledger": "token.near",
		"sender":       "admin",
		"amount":       "1000",
		"msg": mustRawMessage(t, map[string]any{
			"account_id": "beneficiary.near",
			"checkpoints": []map[string]any{
				{"timestamp": 0, "balance": "0"},
				{"timestamp": 100, "balance": "1000"},
			},
		}),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/lockups/0")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	l.EXPECT().Transfer(gomock.Any(), lockup.AccountID("beneficiary.near"), bal(1000)).Return(nil)
	resp = postJSON(t, ts.URL+"/claim", map[string]any{"caller": "beneficiary.near"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Transferred money.Balance `json:"transferred"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, bal(1000), out.Transferred)
}

func TestSetState_RequiresDepositWhitelistMembership(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/set_state", map[string]any{"caller": "stranger", "enabled": false})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/set_state", map[string]any{"caller": "admin", "enabled": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func mustRawMessage(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
