// Package config loads the engine's bootstrap configuration: the
// escrowed token account, initial whitelists, and the store/HTTP wiring
// parameters. Grounded on the teacher's pkg/policy.Load shape (JSON file,
// warn-only on absence, explicit Validate).
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lumera-labs/lockup-vesting/internal/acl"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
)

type whitelistedPoolJSON struct {
	Exchange string `json:"exchange"`
	Pool     uint64 `json:"pool"`
}

// Config is the engine's bootstrap configuration (§6 constructor plus
// process wiring the spec leaves to the implementer).
type Config struct {
	TokenAccountID         lockup.AccountID  `json:"token_account_id"`
	InitialDepositWhitelist []lockup.AccountID `json:"initial_deposit_whitelist"`
	InitialPoolWhitelist    []whitelistedPoolJSON `json:"initial_pool_whitelist"`

	StorePath  string `json:"store_path"`
	HTTPAddr   string `json:"http_addr"`
	RatePerMin int    `json:"rate_per_min"`
	Burst      int    `json:"burst"`
}

// Load reads and validates a JSON config file. A missing file is not
// fatal -- callers may fall back to flags/env, matching the teacher's
// "service will start but may be incomplete" policy-load posture.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the handful of fields that must be non-empty for the
// engine to boot meaningfully.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if len(c.InitialDepositWhitelist) == 0 {
		return fmt.Errorf("config: initial_deposit_whitelist must not be empty (would lock out ACL admin)")
	}
	return nil
}

// PoolWhitelist projects the JSON-friendly pool list into acl.PoolKey
// values the engine's ACL constructor accepts.
func (c *Config) PoolWhitelist() []acl.PoolKey {
	out := make([]acl.PoolKey, 0, len(c.InitialPoolWhitelist))
	for _, p := range c.InitialPoolWhitelist {
		out = append(out, acl.PoolKey{Exchange: lockup.AccountID(p.Exchange), Pool: p.Pool})
	}
	return out
}
