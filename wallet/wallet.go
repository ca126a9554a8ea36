// Package wallet composes the engine: credential verification gates
// session issuance, sessions gate vault decryption, and decrypted seed
// material flows through HD derivation into addresses and signatures.
// Seed bytes live only inside a single operation and are wiped on every
// exit path.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/kestrelwallet/kestrel/addr"
	"github.com/kestrelwallet/kestrel/cred"
	"github.com/kestrelwallet/kestrel/hdkey"
	"github.com/kestrelwallet/kestrel/internal/zero"
	"github.com/kestrelwallet/kestrel/mnemonic"
	"github.com/kestrelwallet/kestrel/netparams"
	"github.com/kestrelwallet/kestrel/session"
	"github.com/kestrelwallet/kestrel/signer"
	"github.com/kestrelwallet/kestrel/stealth"
	"github.com/kestrelwallet/kestrel/vault"
	"github.com/kestrelwallet/kestrel/walletdb"
)

var (
	vaultBucketName  = []byte("vaults")
	engineBucketName = []byte("engine")
	sessionKeyName   = []byte("session-signing-key")
)

// Wallet is the engine facade. It is safe for concurrent use; all
// shared state lives in the database and the subsystem stores guard
// their own writes.
type Wallet struct {
	cfg    *Config
	params *netparams.Params
	db     walletdb.DB
	clock  clock.Clock

	creds    *cred.Store
	sessions *session.Manager
}

// newWallet wires the subsystems over an open database. The session
// signing key is created on first load and reused afterwards so handles
// survive restarts.
func newWallet(cfg *Config, db walletdb.DB, clk clock.Clock) (
	*Wallet, error) {

	var signingKey [32]byte
	err := walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		bkt, err := tx.CreateTopLevelBucket(engineBucketName)
		if err != nil {
			return err
		}
		if _, err := tx.CreateTopLevelBucket(vaultBucketName); err != nil {
			return err
		}

		if existing := bkt.Get(sessionKeyName); existing != nil {
			copy(signingKey[:], existing)
			return nil
		}
		if _, err := rand.Read(signingKey[:]); err != nil {
			return err
		}
		return bkt.Put(sessionKeyName, signingKey[:])
	})
	if err != nil {
		return nil, err
	}

	creds, err := cred.NewStore(db, cfg.credParams())
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewManager(db, clk, session.Config{
		SigningKey: signingKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	return &Wallet{
		cfg:      cfg,
		params:   cfg.NetParams(),
		db:       db,
		clock:    clk,
		creds:    creds,
		sessions: sessions,
	}, nil
}

// ChainParams returns the network the engine was loaded for.
func (w *Wallet) ChainParams() *netparams.Params {
	return w.params
}

// GenerateMnemonic returns a fresh mnemonic of the requested entropy
// strength, 128 or 256 bits. The phrase is never persisted; callers
// must show it once and import it immediately.
func (w *Wallet) GenerateMnemonic(strength int) (string, error) {
	phrase, err := mnemonic.Generate(strength)
	if err != nil {
		return "", convertError(err)
	}
	return phrase, nil
}

// ValidateMnemonic reports whether the phrase passes wordlist and
// checksum validation. It never fails.
func (w *Wallet) ValidateMnemonic(phrase string) bool {
	return mnemonic.Validate(phrase)
}

// CheckMnemonicWords returns the position of the first word not in the
// wordlist, or -1 when all words are known. The phrase itself is never
// echoed back.
func (w *Wallet) CheckMnemonicWords(phrase string) int {
	return mnemonic.CheckWords(phrase)
}

// ImportMnemonic converts the phrase to its seed and seals it into a
// vault bound to the account. Importing over an existing vault is a
// storage conflict; use RewrapVault to change the password.
func (w *Wallet) ImportMnemonic(accountID, phrase, passphrase,
	password string) error {

	seed, err := mnemonic.ToSeed(phrase, passphrase)
	if err != nil {
		return convertError(err)
	}
	defer zero.Bytes(seed)

	blob, err := vault.Seal(
		seed, []byte(password), []byte(accountID),
		w.cfg.vaultParams(),
	)
	if err != nil {
		return convertError(err)
	}

	err = walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		bkt := tx.ReadWriteBucket(vaultBucketName)
		if bkt.Get([]byte(accountID)) != nil {
			return walletError(ErrStorageConflict,
				"a vault already exists for this account", nil)
		}
		return bkt.Put([]byte(accountID), blob.Marshal())
	})
	if err != nil {
		return convertError(err)
	}

	log.Debugf("Sealed new vault for account %q", accountID)
	return nil
}

// RewrapVault re-encrypts the account's vault under a new password with
// a fresh salt and nonce. The swap happens inside one database
// transaction, so a concurrent reader sees either the old or the new
// blob, never a partial write.
func (w *Wallet) RewrapVault(accountID, oldPassword,
	newPassword string) error {

	err := walletdb.Update(w.db, func(tx walletdb.ReadWriteTx) error {
		bkt := tx.ReadWriteBucket(vaultBucketName)
		raw := bkt.Get([]byte(accountID))
		if raw == nil {
			// No oracle for which of account or password was
			// wrong.
			return vault.ErrInvalidPassword
		}
		blob, err := vault.Unmarshal(raw)
		if err != nil {
			return err
		}

		next, err := vault.Rewrap(
			blob, []byte(oldPassword), []byte(newPassword),
			[]byte(accountID), w.cfg.vaultParams(),
		)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(accountID), next.Marshal())
	})
	return convertError(err)
}

// withSeed opens the account's vault and hands the decrypted seed to
// fn. The seed is wiped when fn returns, on every path.
func (w *Wallet) withSeed(accountID, password string,
	fn func(seed []byte) error) error {

	var raw []byte
	err := walletdb.View(w.db, func(tx walletdb.ReadTx) error {
		stored := tx.ReadBucket(vaultBucketName).Get([]byte(accountID))
		if stored == nil {
			return vault.ErrInvalidPassword
		}
		raw = make([]byte, len(stored))
		copy(raw, stored)
		return nil
	})
	if err != nil {
		return err
	}

	blob, err := vault.Unmarshal(raw)
	if err != nil {
		return err
	}
	seed, err := vault.Open(blob, []byte(password), []byte(accountID))
	if err != nil {
		return err
	}
	defer zero.Bytes(seed)

	return fn(seed)
}

// authenticate validates an access handle and checks the account is
// still active.
func (w *Wallet) authenticate(accessHandle string) (*session.Identity, error) {
	ident, err := w.sessions.ValidateAccess(accessHandle)
	if err != nil {
		return nil, err
	}
	rec, err := w.creds.Lookup(ident.UserID)
	if err != nil {
		return nil, err
	}
	if rec.Disabled {
		return nil, walletError(ErrAccountInactive,
			"account is disabled", nil)
	}
	return ident, nil
}

// deriveKey resolves a path string against the session holder's seed
// and returns the extended key at that path. The caller must Zero it.
func (w *Wallet) deriveKey(accountID, password, path string) (
	*hdkeychain.ExtendedKey, error) {

	parsed, err := hdkey.ParsePath(path)
	if err != nil {
		return nil, err
	}

	var derived *hdkeychain.ExtendedKey
	err = w.withSeed(accountID, password, func(seed []byte) error {
		master, err := hdkey.MasterFromSeed(seed, w.params.Params)
		if err != nil {
			return err
		}
		defer master.Zero()

		derived, err = hdkey.DerivePath(master, parsed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return derived, nil
}

// DeriveAddress derives the key at path for the session holder's
// account and encodes it for the requested chain. Solana addresses use
// an ed25519 key expanded from the 32 key bytes at the path.
func (w *Wallet) DeriveAddress(accessHandle, password, path string,
	chain addr.Chain) (addr.Address, error) {

	ident, err := w.authenticate(accessHandle)
	if err != nil {
		return addr.Address{}, convertError(err)
	}

	key, err := w.deriveKey(ident.UserID, password, path)
	if err != nil {
		return addr.Address{}, convertError(err)
	}
	defer key.Zero()

	var address addr.Address
	switch chain {
	case addr.EVM:
		pubKey, err := key.ECPubKey()
		if err != nil {
			return addr.Address{}, convertError(err)
		}
		address = addr.NewEVM(pubKey)

	case addr.BitcoinP2PKH:
		pubKey, err := key.ECPubKey()
		if err != nil {
			return addr.Address{}, convertError(err)
		}
		address, err = addr.NewP2PKH(pubKey, w.params.Params)
		if err != nil {
			return addr.Address{}, convertError(err)
		}

	case addr.BitcoinP2WPKH:
		pubKey, err := key.ECPubKey()
		if err != nil {
			return addr.Address{}, convertError(err)
		}
		address, err = addr.NewP2WPKH(pubKey, w.params.Params)
		if err != nil {
			return addr.Address{}, convertError(err)
		}

	case addr.SolanaEd25519:
		edKey, err := solanaKey(key)
		if err != nil {
			return addr.Address{}, convertError(err)
		}
		defer zero.Bytes(edKey)
		address, err = addr.NewSolana(
			edKey.Public().(ed25519.PublicKey),
		)
		if err != nil {
			return addr.Address{}, convertError(err)
		}

	default:
		return addr.Address{}, walletError(ErrBadAddress,
			"unsupported chain", nil)
	}

	return address, nil
}

// SignEvmTx derives the key at path and signs the EVM transaction.
func (w *Wallet) SignEvmTx(accessHandle, password, path string,
	tx *signer.EvmTx) (*signer.SignedEvmTx, error) {

	ident, err := w.authenticate(accessHandle)
	if err != nil {
		return nil, convertError(err)
	}

	key, err := w.deriveKey(ident.UserID, password, path)
	if err != nil {
		return nil, convertError(err)
	}
	defer key.Zero()

	privKey, err := key.ECPrivKey()
	if err != nil {
		return nil, convertError(err)
	}

	signed, err := signer.SignEvm(tx, privKey)
	if err != nil {
		return nil, convertError(err)
	}
	return signed, nil
}

// SignBtcTx signs every input of the packet, deriving one key per input
// from the supplied paths, then finalizes and extracts the transaction.
func (w *Wallet) SignBtcTx(accessHandle, password string,
	packet *psbt.Packet, paths []string) (*signer.SignedBtcTx, error) {

	ident, err := w.authenticate(accessHandle)
	if err != nil {
		return nil, convertError(err)
	}
	if packet == nil || packet.UnsignedTx == nil ||
		len(paths) != len(packet.UnsignedTx.TxIn) {

		return nil, walletError(ErrBadTx,
			"need one derivation path per input", nil)
	}

	keys := make([]*btcec.PrivateKey, len(paths))
	defer func() {
		for _, k := range keys {
			if k != nil {
				k.Zero()
			}
		}
	}()
	for i, path := range paths {
		key, err := w.deriveKey(ident.UserID, password, path)
		if err != nil {
			return nil, convertError(err)
		}
		keys[i], err = key.ECPrivKey()
		key.Zero()
		if err != nil {
			return nil, convertError(err)
		}
	}

	signed, err := signer.SignPsbt(packet,
		func(i int, in *psbt.PInput) (*btcec.PrivateKey, error) {
			return keys[i], nil
		},
	)
	if err != nil {
		return nil, convertError(err)
	}
	return signed, nil
}

// SignSolMsg derives the ed25519 key at path and signs the Solana
// message.
func (w *Wallet) SignSolMsg(accessHandle, password, path string,
	msg *signer.SolMessage) (*signer.SignedSolMsg, error) {

	ident, err := w.authenticate(accessHandle)
	if err != nil {
		return nil, convertError(err)
	}

	key, err := w.deriveKey(ident.UserID, password, path)
	if err != nil {
		return nil, convertError(err)
	}
	defer key.Zero()

	edKey, err := solanaKey(key)
	if err != nil {
		return nil, convertError(err)
	}
	defer zero.Bytes(edKey)

	signed, err := signer.SignSolMsg(msg, edKey)
	if err != nil {
		return nil, convertError(err)
	}
	return signed, nil
}

// RegisterCredential creates a credential record for a new user.
func (w *Wallet) RegisterCredential(userID, password string) error {
	_, err := w.creds.Register(
		userID, []byte(password), w.clock.Now(),
	)
	return convertError(err)
}

// VerifyCredential checks the user's password. Legacy records are
// transparently rehashed under the current algorithm; a rehash failure
// never fails the login.
func (w *Wallet) VerifyCredential(userID, password string) error {
	rec, err := w.creds.Lookup(userID)
	if err != nil {
		return convertError(err)
	}
	if rec.Disabled {
		return walletError(ErrAccountInactive,
			"account is disabled", nil)
	}

	rehashNeeded, err := rec.Verify([]byte(password))
	if err != nil {
		return convertError(err)
	}
	if rehashNeeded {
		err := w.creds.Rehash(
			userID, []byte(password), w.clock.Now(),
		)
		if err != nil {
			log.Warnf("Credential rehash for %q failed: %v",
				userID, err)
		}
	}
	return nil
}

// SetAccountDisabled flips the account's disabled flag. Disabled
// accounts fail credential and session checks until re-enabled.
func (w *Wallet) SetAccountDisabled(userID string, disabled bool) error {
	return convertError(w.creds.SetDisabled(userID, disabled))
}

// CreateSession verifies the credential and issues a fresh session
// handle pair.
func (w *Wallet) CreateSession(userID, password,
	fingerprint string) (*session.Session, error) {

	if err := w.VerifyCredential(userID, password); err != nil {
		return nil, err
	}
	sess, err := w.sessions.Create(userID, fingerprint)
	if err != nil {
		return nil, convertError(err)
	}
	return sess, nil
}

// ValidateSession checks an access handle and returns the identity it
// authenticates.
func (w *Wallet) ValidateSession(accessHandle string) (
	*session.Identity, error) {

	ident, err := w.authenticate(accessHandle)
	if err != nil {
		return nil, convertError(err)
	}
	return ident, nil
}

// RefreshSession rotates a refresh handle into a new handle pair. A
// consumed handle never rotates twice.
func (w *Wallet) RefreshSession(refreshHandle string) (
	*session.Session, error) {

	sess, err := w.sessions.Refresh(refreshHandle)
	if err != nil {
		return nil, convertError(err)
	}
	return sess, nil
}

// RevokeSession marks the session revoked; both of its handles fail
// validation from then on.
func (w *Wallet) RevokeSession(id session.SessionID) error {
	return convertError(w.sessions.Revoke(id))
}

// CleanupSessions sweeps sessions whose refresh lifetime has fully
// elapsed. Safe to run concurrently and repeatedly.
func (w *Wallet) CleanupSessions() (int, error) {
	n, err := w.sessions.CleanupExpired()
	if err != nil {
		return 0, convertError(err)
	}
	return n, nil
}

// StealthGenKeys generates a scan/spend key pair with its encoded
// meta-address.
func (w *Wallet) StealthGenKeys() (*stealth.Keys, string, error) {
	keys, err := stealth.GenerateKeys()
	if err != nil {
		return nil, "", convertError(err)
	}
	return keys, keys.Meta().String(), nil
}

// StealthNewPayment derives a one-time payment address for the given
// meta-address.
func (w *Wallet) StealthNewPayment(metaAddress string) (
	*stealth.Payment, error) {

	meta, err := stealth.ParseMetaAddress(metaAddress)
	if err != nil {
		return nil, convertError(err)
	}
	payment, err := stealth.GenerateStealthAddress(meta)
	if err != nil {
		return nil, convertError(err)
	}
	return payment, nil
}

// StealthScan derives candidate stealth addresses for a batch of
// announced ephemeral keys.
func (w *Wallet) StealthScan(scanKey *btcec.PrivateKey,
	spendPub *btcec.PublicKey,
	ephemeralPubs []*btcec.PublicKey) ([]stealth.Candidate, error) {

	candidates, err := stealth.ScanForPayments(
		scanKey, spendPub, ephemeralPubs,
	)
	if err != nil {
		return nil, convertError(err)
	}
	return candidates, nil
}

// StealthRecoverKey recovers the private key controlling a one-time
// stealth address.
func (w *Wallet) StealthRecoverKey(scanKey, spendKey *btcec.PrivateKey,
	ephemeralPub *btcec.PublicKey) (*btcec.PrivateKey, error) {

	privKey, err := stealth.DeriveStealthPrivateKey(
		scanKey, spendKey, ephemeralPub,
	)
	if err != nil {
		return nil, convertError(err)
	}
	return privKey, nil
}

// solanaKey expands the 32 secp256k1 key bytes at a derivation path
// into an ed25519 signing key. The mapping is deterministic, so the
// same path always yields the same Solana identity.
func solanaKey(key *hdkeychain.ExtendedKey) (ed25519.PrivateKey, error) {
	privKey, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	keyBytes := privKey.Serialize()
	defer zero.Bytes(keyBytes)
	privKey.Zero()

	return ed25519.NewKeyFromSeed(keyBytes), nil
}
