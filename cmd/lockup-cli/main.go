// Command lockup-cli is a thin HTTP client over lockup-serverd's
// operation surface (spec.md §6), grounded on the teacher's
// urfave/cli/v2 command layout (luxfi-evm/cmd/evm) crossed with
// cmd/lumera-supply-cli's "decode, project, print JSON" shape.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "lockup-cli",
		Usage: "client for the token-lockup and vesting engine's HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "lockup-serverd base URL", EnvVars: []string{"LOCKUP_SERVER_URL"}},
			&cli.StringFlag{Name: "caller", Usage: "caller account id attached to write requests", EnvVars: []string{"LOCKUP_CALLER"}},
		},
		Commands: []*cli.Command{
			getLockupCommand,
			getAccountLockupsCommand,
			getNumLockupsCommand,
			getDepositWhitelistCommand,
			hashScheduleCommand,
			validateScheduleCommand,
			claimCommand,
			terminateCommand,
			setStateCommand,
			whitelistCommand,
			depositWhitelistAddCommand,
			depositWhitelistRemoveCommand,
			proxyTransferCommand,
			proxyTransferCallCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func doRequest(server, method, path string, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, strings.TrimRight(server, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out any
	dec := json.NewDecoder(resp.Body)
	_ = dec.Decode(&out)
	if resp.StatusCode/100 != 2 {
		return out, fmt.Errorf("server returned %s", resp.Status)
	}
	return out, nil
}

func printResult(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var getLockupCommand = &cli.Command{
	Name:      "get-lockup",
	Usage:     "fetch a single lockup's view",
	ArgsUsage: "<index>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 1 {
			return fmt.Errorf("index required")
		}
		out, err := doRequest(c.String("server"), http.MethodGet, "/lockups/"+c.Args().Get(0), nil)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var getAccountLockupsCommand = &cli.Command{
	Name:      "get-account-lockups",
	Usage:     "fetch all lockup views for a beneficiary",
	ArgsUsage: "<account_id>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 1 {
			return fmt.Errorf("account_id required")
		}
		out, err := doRequest(c.String("server"), http.MethodGet, "/accounts/"+c.Args().Get(0), nil)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var getNumLockupsCommand = &cli.Command{
	Name:  "get-num-lockups",
	Usage: "fetch the total ever-created lockup count",
	Action: func(c *cli.Context) error {
		out, err := doRequest(c.String("server"), http.MethodGet, "/num_lockups", nil)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var getDepositWhitelistCommand = &cli.Command{
	Name:  "get-deposit-whitelist",
	Usage: "list the deposit whitelist",
	Action: func(c *cli.Context) error {
		out, err := doRequest(c.String("server"), http.MethodGet, "/deposit_whitelist", nil)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var hashScheduleCommand = &cli.Command{
	Name:      "hash-schedule",
	Usage:     "compute the canonical hash commitment of a schedule read from a JSON file",
	ArgsUsage: "<schedule.json>",
	Action: func(c *cli.Context) error {
		body, err := readJSONFile(c.Args().Get(0))
		if err != nil {
			return err
		}
		out, err := doRequest(c.String("server"), http.MethodPost, "/hash_schedule", body)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var validateScheduleCommand = &cli.Command{
	Name:      "validate-schedule",
	Usage:     "validate a schedule (and optional vesting schedule) read from a JSON file",
	ArgsUsage: "<request.json>",
	Action: func(c *cli.Context) error {
		body, err := readJSONFile(c.Args().Get(0))
		if err != nil {
			return err
		}
		out, err := doRequest(c.String("server"), http.MethodPost, "/validate_schedule", body)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var claimCommand = &cli.Command{
	Name:  "claim",
	Usage: "claim all unlocked, unclaimed balance across the caller's lockups",
	Action: func(c *cli.Context) error {
		out, err := doRequest(c.String("server"), http.MethodPost, "/claim", map[string]any{"caller": requireCaller(c)})
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var terminateCommand = &cli.Command{
	Name:      "terminate",
	Usage:     "revoke the unvested remainder of a lockup",
	ArgsUsage: "<index> [revealed-vesting-schedule.json]",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 1 {
			return fmt.Errorf("index required")
		}
		idx, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
		if err != nil {
			return err
		}
		req := map[string]any{"caller": requireCaller(c), "index": idx}
		if c.Args().Len() >= 2 {
			revealed, err := readJSONFile(c.Args().Get(1))
			if err != nil {
				return err
			}
			req["vesting_schedule"] = revealed
		}
		out, err := doRequest(c.String("server"), http.MethodPost, "/terminate", req)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var setStateCommand = &cli.Command{
	Name:      "set-state",
	Usage:     "enable or disable the engine",
	ArgsUsage: "<true|false>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 1 {
			return fmt.Errorf("true|false required")
		}
		enabled, err := strconv.ParseBool(c.Args().Get(0))
		if err != nil {
			return err
		}
		out, err := doRequest(c.String("server"), http.MethodPost, "/set_state", map[string]any{"caller": requireCaller(c), "enabled": enabled})
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var whitelistCommand = &cli.Command{
	Name:      "whitelist",
	Usage:     "add or remove (exchange, pool) custody whitelist entries",
	ArgsUsage: "<add|remove> <exchange> <pool>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 3 {
			return fmt.Errorf("usage: whitelist <add|remove> <exchange> <pool>")
		}
		pool, err := strconv.ParseUint(c.Args().Get(2), 10, 64)
		if err != nil {
			return err
		}
		req := map[string]any{
			"caller": requireCaller(c),
			"action": c.Args().Get(0),
			"keys":   []map[string]any{{"exchange": c.Args().Get(1), "pool": pool}},
		}
		out, err := doRequest(c.String("server"), http.MethodPost, "/whitelist", req)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var depositWhitelistAddCommand = &cli.Command{
	Name:      "deposit-whitelist-add",
	Usage:     "add an account to the deposit whitelist",
	ArgsUsage: "<account_id>",
	Action: func(c *cli.Context) error {
		return depositWhitelistMutate(c, "/deposit_whitelist/add")
	},
}

var depositWhitelistRemoveCommand = &cli.Command{
	Name:      "deposit-whitelist-remove",
	Usage:     "remove an account from the deposit whitelist",
	ArgsUsage: "<account_id>",
	Action: func(c *cli.Context) error {
		return depositWhitelistMutate(c, "/deposit_whitelist/remove")
	},
}

func depositWhitelistMutate(c *cli.Context, path string) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("account_id required")
	}
	req := map[string]any{"caller": requireCaller(c), "account": c.Args().Get(0)}
	out, err := doRequest(c.String("server"), http.MethodPost, path, req)
	if err != nil {
		return err
	}
	return printResult(out)
}

var proxyTransferCommand = &cli.Command{
	Name:      "proxy-transfer",
	Usage:     "forward custodied LP shares to a receiver via the exchange",
	ArgsUsage: "<token_id> <receiver> <amount>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 3 {
			return fmt.Errorf("usage: proxy-transfer <token_id> <receiver> <amount>")
		}
		req := map[string]any{
			"caller":   requireCaller(c),
			"deposit":  true,
			"token_id": c.Args().Get(0),
			"receiver": c.Args().Get(1),
			"amount":   c.Args().Get(2),
		}
		out, err := doRequest(c.String("server"), http.MethodPost, "/proxy_mft_transfer", req)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

var proxyTransferCallCommand = &cli.Command{
	Name:      "proxy-transfer-call",
	Usage:     "proxy-transfer with an attached callback message on the receiver",
	ArgsUsage: "<token_id> <receiver> <amount> <msg>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() < 4 {
			return fmt.Errorf("usage: proxy-transfer-call <token_id> <receiver> <amount> <msg>")
		}
		req := map[string]any{
			"caller":   requireCaller(c),
			"deposit":  true,
			"token_id": c.Args().Get(0),
			"receiver": c.Args().Get(1),
			"amount":   c.Args().Get(2),
			"msg":      c.Args().Get(3),
		}
		out, err := doRequest(c.String("server"), http.MethodPost, "/proxy_mft_transfer_call", req)
		if err != nil {
			return err
		}
		return printResult(out)
	},
}

func requireCaller(c *cli.Context) string {
	caller := c.String("caller")
	if caller == "" {
		fmt.Fprintln(os.Stderr, "warning: --caller not set")
	}
	return caller
}

func readJSONFile(path string) (map[string]any, error) {
	if path == "" {
		return nil, fmt.Errorf("json file path required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
