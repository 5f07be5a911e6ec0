// Package config resolves harness configuration from defaults, an optional
// config file, and DIPPROBE_* environment variables. The resolved Config is
// threaded explicitly into the components that need it; nothing reads
// configuration ambiently.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix scopes the environment variables viper reads
// (e.g. DIPPROBE_NETWORK, DIPPROBE_CAP_CANISTER).
const EnvPrefix = "DIPPROBE"

// Networks the harness knows how to target.
const (
	NetworkLocal = "local"
	NetworkIC    = "ic"
)

// Config is the fully resolved harness configuration.
type Config struct {
	// Network selects the target environment: local replica or mainnet.
	Network string

	// Canister is the dfx.json name of the token canister under test.
	Canister string

	// DfxBinary is the toolchain executable; resolved via PATH when bare.
	DfxBinary string

	// ProjectDir is the directory holding dfx.json.
	ProjectDir string

	// CallTimeout bounds each toolchain invocation.
	CallTimeout time.Duration

	// Database is the run-log SQLite path.
	Database string

	// CapCanister is an explicitly supplied history-log canister
	// principal. Empty means resolve via the configured strategy chain.
	CapCanister string

	// FreshIdentities provisions identities in a throwaway per-run scope
	// instead of the persistent project scope, so a run never reuses key
	// material from earlier runs.
	FreshIdentities bool
}

// New returns a viper instance with harness defaults and environment
// binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", NetworkLocal)
	v.SetDefault("canister", "token")
	v.SetDefault("dfx-binary", "dfx")
	v.SetDefault("project-dir", ".")
	v.SetDefault("call-timeout", 2*time.Minute)
	v.SetDefault("database", "dipprobe.db")
	v.SetDefault("cap-canister", "")
	v.SetDefault("fresh-identities", false)

	return v
}

// Resolve extracts and validates a Config from a viper instance.
func Resolve(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Network:     v.GetString("network"),
		Canister:    v.GetString("canister"),
		DfxBinary:   v.GetString("dfx-binary"),
		ProjectDir:  v.GetString("project-dir"),
		CallTimeout: v.GetDuration("call-timeout"),
		Database:    v.GetString("database"),
		CapCanister: v.GetString("cap-canister"),

		FreshIdentities: v.GetBool("fresh-identities"),
	}

	if cfg.Network != NetworkLocal && cfg.Network != NetworkIC {
		return nil, fmt.Errorf("invalid network %q: must be %q or %q", cfg.Network, NetworkLocal, NetworkIC)
	}
	if cfg.Canister == "" {
		return nil, fmt.Errorf("canister name must not be empty")
	}
	if cfg.CallTimeout <= 0 {
		return nil, fmt.Errorf("call-timeout must be positive, got %s", cfg.CallTimeout)
	}

	return cfg, nil
}
