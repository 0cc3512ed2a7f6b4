package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"otcvault/core/types"
	"otcvault/native/auction"
	"otcvault/native/otc"
	"otcvault/storage"
)

// Key prefixes for the persisted record families.
var (
	prefixAccount        = []byte("acct/")
	prefixAgreement      = []byte("otc/agreement/")
	prefixAuction        = []byte("auction/meta/")
	prefixBidEntry       = []byte("auction/bid/")
	prefixTokenBalance   = []byte("token/bal/")
	prefixTokenAllowance = []byte("token/allow/")

	keyGenesisApplied = []byte("meta/genesis")
)

// vaultAddress is the module account holding all escrowed funds, derived from
// a fixed tag so it never collides with a key-derived account.
var vaultAddress = func() [20]byte {
	hashed := ethcrypto.Keccak256([]byte("otcvault/module/vault"))
	var addr [20]byte
	copy(addr[:], hashed[12:])
	return addr
}()

// Manager stages all reads and writes of one host call on top of the backing
// database. Nothing reaches the database until Commit flushes the overlay as
// a single atomic batch; Discard throws the overlay away, which is how a
// failed call leaves no trace.
type Manager struct {
	mu    sync.Mutex
	db    storage.Database
	dirty map[string][]byte // nil value marks a staged delete
}

// NewManager creates a manager over the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string][]byte)}
}

// VaultAddress returns the module escrow account.
func (m *Manager) VaultAddress() [20]byte { return vaultAddress }

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	if value, ok := m.dirty[string(key)]; ok {
		m.mu.Unlock()
		if value == nil {
			return nil, false, nil
		}
		return append([]byte(nil), value...), true, nil
	}
	m.mu.Unlock()
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: read %q: %w", key, err)
	}
	return value, true, nil
}

func (m *Manager) put(key, value []byte) {
	m.mu.Lock()
	m.dirty[string(key)] = append([]byte(nil), value...)
	m.mu.Unlock()
}

func (m *Manager) delete(key []byte) {
	m.mu.Lock()
	m.dirty[string(key)] = nil
	m.mu.Unlock()
}

// Commit flushes the staged overlay to the database in one batch and resets
// the overlay.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.dirty) == 0 {
		return nil
	}
	batch := new(storage.Batch)
	for key, value := range m.dirty {
		if value == nil {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), value)
	}
	if err := m.db.Write(batch); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string][]byte)
	return nil
}

// Discard drops all staged writes.
func (m *Manager) Discard() {
	m.mu.Lock()
	m.dirty = make(map[string][]byte)
	m.mu.Unlock()
}

// GenesisApplied reports whether the genesis allocation was already seeded
// into this database.
func (m *Manager) GenesisApplied() (bool, error) {
	_, ok, err := m.get(keyGenesisApplied)
	return ok, err
}

// MarkGenesisApplied stages the one-shot genesis marker.
func (m *Manager) MarkGenesisApplied() {
	m.put(keyGenesisApplied, []byte("1"))
}

// --- account records ---

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), prefixAccount...), addr[:]...)
}

// GetAccount loads an account, returning an empty one for unknown addresses.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	raw, ok, err := m.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	account := types.NewAccount()
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account %x: %w", addr, err)
	}
	return account, nil
}

// PutAccount stages an account write.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account for %x", addr)
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("state: encode account %x: %w", addr, err)
	}
	m.put(accountKey(addr), raw)
	return nil
}

// --- agreement records ---

func agreementKey(id [32]byte) []byte {
	return append(append([]byte(nil), prefixAgreement...), id[:]...)
}

// AgreementPut stages an agreement write.
func (m *Manager) AgreementPut(a *otc.Agreement) error {
	sanitized, err := otc.Sanitize(a)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("state: encode agreement %x: %w", sanitized.ID, err)
	}
	m.put(agreementKey(sanitized.ID), raw)
	return nil
}

// AgreementGet loads an agreement by identifier.
func (m *Manager) AgreementGet(id [32]byte) (*otc.Agreement, bool, error) {
	raw, ok, err := m.get(agreementKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	agreement := new(otc.Agreement)
	if err := json.Unmarshal(raw, agreement); err != nil {
		return nil, false, fmt.Errorf("state: decode agreement %x: %w", id, err)
	}
	return agreement, true, nil
}

// --- auction records ---

func auctionKey(id [32]byte) []byte {
	return append(append([]byte(nil), prefixAuction...), id[:]...)
}

func bidEntryKey(id [32]byte, bidder [20]byte) []byte {
	key := append(append([]byte(nil), prefixBidEntry...), id[:]...)
	return append(key, bidder[:]...)
}

// AuctionPut stages an auction write.
func (m *Manager) AuctionPut(a *auction.Auction) error {
	sanitized, err := auction.Sanitize(a)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("state: encode auction %x: %w", sanitized.ID, err)
	}
	m.put(auctionKey(sanitized.ID), raw)
	return nil
}

// AuctionGet loads an auction by identifier.
func (m *Manager) AuctionGet(id [32]byte) (*auction.Auction, bool, error) {
	raw, ok, err := m.get(auctionKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	a := new(auction.Auction)
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, false, fmt.Errorf("state: decode auction %x: %w", id, err)
	}
	return a, true, nil
}

// BidEntryPut stages a bidder's cumulative contribution.
func (m *Manager) BidEntryPut(auctionID [32]byte, bidder [20]byte, total *big.Int) error {
	if total == nil || total.Sign() < 0 {
		return fmt.Errorf("state: bid entry must be non-negative")
	}
	m.put(bidEntryKey(auctionID, bidder), []byte(total.String()))
	return nil
}

// BidEntryGet loads a bidder's cumulative contribution.
func (m *Manager) BidEntryGet(auctionID [32]byte, bidder [20]byte) (*big.Int, bool, error) {
	raw, ok, err := m.get(bidEntryKey(auctionID, bidder))
	if err != nil || !ok {
		return big.NewInt(0), false, err
	}
	total, valid := new(big.Int).SetString(string(raw), 10)
	if !valid {
		return nil, false, fmt.Errorf("state: corrupt bid entry for %x/%x", auctionID, bidder)
	}
	return total, true, nil
}

// BidEntryDelete stages removal of a bidder's ledger entry.
func (m *Manager) BidEntryDelete(auctionID [32]byte, bidder [20]byte) error {
	m.delete(bidEntryKey(auctionID, bidder))
	return nil
}

// --- managed token books ---

func tokenBalanceKey(token, holder [20]byte) []byte {
	key := append(append([]byte(nil), prefixTokenBalance...), token[:]...)
	return append(key, holder[:]...)
}

func tokenAllowanceKey(token, owner, spender [20]byte) []byte {
	key := append(append([]byte(nil), prefixTokenAllowance...), token[:]...)
	key = append(key, owner[:]...)
	return append(key, spender[:]...)
}

// TokenBalanceGet loads a holder's balance in a managed token book.
func (m *Manager) TokenBalanceGet(token, holder [20]byte) (*big.Int, error) {
	raw, ok, err := m.get(tokenBalanceKey(token, holder))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	balance, valid := new(big.Int).SetString(string(raw), 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt token balance for %x/%x", token, holder)
	}
	return balance, nil
}

// TokenBalancePut stages a holder's balance in a managed token book.
func (m *Manager) TokenBalancePut(token, holder [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: token balance must be non-negative")
	}
	if amount.Sign() == 0 {
		m.delete(tokenBalanceKey(token, holder))
		return nil
	}
	m.put(tokenBalanceKey(token, holder), []byte(amount.String()))
	return nil
}

// TokenAllowanceGet loads the unspent allowance from owner to spender.
func (m *Manager) TokenAllowanceGet(token, owner, spender [20]byte) (*big.Int, error) {
	raw, ok, err := m.get(tokenAllowanceKey(token, owner, spender))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	allowance, valid := new(big.Int).SetString(string(raw), 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt token allowance for %x/%x/%x", token, owner, spender)
	}
	return allowance, nil
}

// TokenAllowancePut stages the allowance from owner to spender.
func (m *Manager) TokenAllowancePut(token, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: token allowance must be non-negative")
	}
	if amount.Sign() == 0 {
		m.delete(tokenAllowanceKey(token, owner, spender))
		return nil
	}
	m.put(tokenAllowanceKey(token, owner, spender), []byte(amount.String()))
	return nil
}
