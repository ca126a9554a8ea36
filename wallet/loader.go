package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kestrelwallet/kestrel/walletdb"
	_ "github.com/kestrelwallet/kestrel/walletdb/bdb"
	"github.com/lightningnetwork/lnd/clock"
)

var (
	// ErrLoaded is returned when the loader already holds an engine.
	ErrLoaded = errors.New("wallet engine already loaded")

	// ErrNotLoaded is returned when no engine has been loaded yet.
	ErrNotLoaded = errors.New("wallet engine not loaded")
)

const dbName = "kestrel.db"

// Loader opens the engine database on disk and constructs the wallet
// engine over it, enforcing that at most one engine is loaded at a
// time.
type Loader struct {
	cfg *Config

	wallet *Wallet
	db     walletdb.DB
	mu     sync.Mutex
}

// NewLoader returns a loader for the given config.
func NewLoader(cfg *Config) *Loader {
	return &Loader{cfg: cfg}
}

// Load opens or creates the engine database under the config's data
// directory and builds the wallet engine on top of it.
func (l *Loader) Load() (*Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet != nil {
		return nil, ErrLoaded
	}
	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkCreateDir(l.cfg.DataDir); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(l.cfg.DataDir, dbName)
	db, err := walletdb.Create("bdb", dbPath, true, l.cfg.DBTimeout)
	if err != nil {
		return nil, err
	}

	w, err := newWallet(l.cfg, db, clock.NewDefaultClock())
	if err != nil {
		db.Close()
		return nil, err
	}

	l.db = db
	l.wallet = w
	log.Infof("Engine database loaded from %s", dbPath)
	return w, nil
}

// LoadedWallet returns the loaded engine, if any.
func (l *Loader) LoadedWallet() (*Wallet, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wallet, l.wallet != nil
}

// Unload closes the engine database and releases the loaded engine.
func (l *Loader) Unload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.wallet == nil {
		return ErrNotLoaded
	}
	err := l.db.Close()
	l.wallet = nil
	l.db = nil
	return err
}

// checkCreateDir creates the directory if it does not exist and checks
// that an existing path really is a directory.
func checkCreateDir(path string) error {
	fi, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("cannot create directory %s: %w",
				path, err)
		}
	case err != nil:
		return fmt.Errorf("cannot stat %s: %w", path, err)
	case !fi.IsDir():
		return fmt.Errorf("path %s is not a directory", path)
	}
	return nil
}
