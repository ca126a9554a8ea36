package wallet

import (
	"fmt"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/kestrelwallet/kestrel/cred"
	"github.com/kestrelwallet/kestrel/netparams"
	"github.com/kestrelwallet/kestrel/vault"
)

// Config collects the tunables an embedding application can set. Field
// tags let applications parse it straight from flags or a config file
// with go-flags.
type Config struct {
	DataDir string `short:"A" long:"datadir" description:"Directory holding the engine database"`

	TestNet bool `long:"testnet" description:"Use the test network (default mainnet)"`
	SimNet  bool `long:"simnet" description:"Use the simulation network (default mainnet)"`

	DBTimeout time.Duration `long:"dbtimeout" description:"Timeout for opening the engine database"`

	KDFMemoryKiB  uint32 `long:"kdfmemory" description:"Argon2id memory cost in KiB"`
	KDFIterations uint32 `long:"kdfiterations" description:"Argon2id time cost"`
	KDFThreads    uint8  `long:"kdfthreads" description:"Argon2id parallelism"`

	AccessTTL  time.Duration `long:"accessttl" description:"Access handle lifetime"`
	RefreshTTL time.Duration `long:"refreshttl" description:"Refresh handle lifetime"`
}

// DefaultConfig returns a config with production KDF parameters and the
// standard session lifetimes.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		DataDir:       dataDir,
		DBTimeout:     10 * time.Second,
		KDFMemoryKiB:  vault.DefaultParams.MemoryKiB,
		KDFIterations: vault.DefaultParams.Iterations,
		KDFThreads:    vault.DefaultParams.Parallelism,
	}
}

// ParseArgs fills the config from command-line style arguments,
// keeping defaults for anything not mentioned.
func (c *Config) ParseArgs(args []string) error {
	_, err := flags.NewParser(c, flags.Default).ParseArgs(args)
	return err
}

// Validate normalizes the config and rejects contradictions.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("datadir must be set")
	}
	if c.TestNet && c.SimNet {
		return fmt.Errorf("testnet and simnet are mutually exclusive")
	}
	if c.DBTimeout <= 0 {
		c.DBTimeout = 10 * time.Second
	}
	if c.KDFMemoryKiB == 0 {
		c.KDFMemoryKiB = vault.DefaultParams.MemoryKiB
	}
	if c.KDFIterations == 0 {
		c.KDFIterations = vault.DefaultParams.Iterations
	}
	if c.KDFThreads == 0 {
		c.KDFThreads = vault.DefaultParams.Parallelism
	}
	if c.RefreshTTL != 0 && c.AccessTTL != 0 &&
		c.RefreshTTL < c.AccessTTL {

		return fmt.Errorf("refresh TTL must not be shorter than " +
			"access TTL")
	}
	return nil
}

// NetParams returns the network selected by the config.
func (c *Config) NetParams() *netparams.Params {
	switch {
	case c.TestNet:
		return &netparams.TestNetParams
	case c.SimNet:
		return &netparams.SimNetParams
	default:
		return &netparams.MainNetParams
	}
}

func (c *Config) vaultParams() vault.Params {
	return vault.Params{
		MemoryKiB:   c.KDFMemoryKiB,
		Iterations:  c.KDFIterations,
		Parallelism: c.KDFThreads,
	}
}

func (c *Config) credParams() cred.Params {
	return cred.Params{
		P1: c.KDFMemoryKiB,
		P2: c.KDFIterations,
		P3: uint32(c.KDFThreads),
	}
}
