package core

import (
	"math/big"
	"sync"

	"otcvault/core/events"
	"otcvault/core/genesis"
	"otcvault/core/ledger"
	"otcvault/core/state"
	"otcvault/native/asset"
	"otcvault/native/auction"
	"otcvault/native/fees"
	"otcvault/native/otc"
	"otcvault/native/token"
	"otcvault/observability/metrics"
	"otcvault/storage"
)

// Node is the host for the settlement engines. It totally orders mutating
// calls, stages every call on a state overlay, executes the returned
// movement directives against the ledger, and commits state plus movements
// as one atomic batch. A failure at any point discards the overlay, so the
// engines never observe state written without its movements or vice versa.
// Events reach subscribers only after a successful commit.
type Node struct {
	mu       sync.Mutex
	state    *state.Manager
	tokens   *token.Registry
	bank     *ledger.Executor
	otc      *otc.Engine
	auctions *auction.Engine
	buffer   *bufferedEmitter
	emitter  events.Emitter
	metrics  *metrics.EngineMetrics
}

type bufferedEmitter struct {
	pending []events.Event
}

func (b *bufferedEmitter) Emit(evt events.Event) {
	b.pending = append(b.pending, evt)
}

// NewNode wires the engines, ledger and token registry over the database.
func NewNode(db storage.Database, commission fees.Policy) (*Node, error) {
	if err := commission.Validate(); err != nil {
		return nil, err
	}
	manager := state.NewManager(db)
	registry := token.NewRegistry(manager)
	buffer := &bufferedEmitter{}

	otcEngine := otc.NewEngine(commission)
	otcEngine.SetState(manager)
	otcEngine.SetEmitter(buffer)

	auctionEngine := auction.NewEngine()
	auctionEngine.SetState(manager)
	auctionEngine.SetEmitter(buffer)

	return &Node{
		state:    manager,
		tokens:   registry,
		bank:     ledger.NewExecutor(manager, registry),
		otc:      otcEngine,
		auctions: auctionEngine,
		buffer:   buffer,
		emitter:  events.NoopEmitter{},
		metrics:  metrics.Engine(),
	}, nil
}

// SetEmitter configures where committed events are delivered.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SetNowFunc overrides the engines' time source, primarily for tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.otc.SetNowFunc(now)
	n.auctions.SetNowFunc(now)
}

// execute runs one mutating call to completion: the engine computes state
// writes and the full movement list, the ledger applies the movements, and
// the overlay commits in one batch. Errors roll everything back.
func (n *Node) execute(op string, fn func() ([]asset.Movement, error)) error {
	n.buffer.pending = n.buffer.pending[:0]
	movements, err := fn()
	if err != nil {
		n.state.Discard()
		n.metrics.MarkCallRejected(op)
		return err
	}
	if err := n.bank.Apply(movements); err != nil {
		n.state.Discard()
		n.metrics.MarkCallRejected(op)
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return err
	}
	for _, evt := range n.buffer.pending {
		n.emitter.Emit(evt)
	}
	n.buffer.pending = n.buffer.pending[:0]
	return nil
}

// --- agreement calls ---

// OpenAgreement escrows the caller's offer and opens a new agreement.
func (n *Node) OpenAgreement(caller [20]byte, offer, price asset.Descriptor, nonce [32]byte) (*otc.Agreement, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var opened *otc.Agreement
	err := n.execute("otc_open", func() ([]asset.Movement, error) {
		agreement, movements, err := n.otc.Open(caller, offer, price, nonce)
		if err != nil {
			return nil, err
		}
		opened = agreement
		return movements, nil
	})
	if err != nil {
		return nil, err
	}
	n.metrics.MarkAgreementOpened()
	return opened, nil
}

// BuyAgreement settles an open agreement with the caller's attached payment.
func (n *Node) BuyAgreement(id [32]byte, caller [20]byte, attached []asset.Coin) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.execute("otc_buy", func() ([]asset.Movement, error) {
		return n.otc.Buy(id, caller, attached)
	})
	if err == nil {
		n.metrics.MarkAgreementSettled()
	}
	return err
}

// CloseAgreement cancels an open agreement, returning the offer to its
// receiver.
func (n *Node) CloseAgreement(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.execute("otc_close", func() ([]asset.Movement, error) {
		return n.otc.Close(id, caller)
	})
	if err == nil {
		n.metrics.MarkAgreementCancelled()
	}
	return err
}

// AgreementIsOpen reports whether the agreement accepts a purchase.
func (n *Node) AgreementIsOpen(id [32]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.otc.IsOpen(id)
}

// AgreementStatus returns a copy of the stored agreement.
func (n *Node) AgreementStatus(id [32]byte) (*otc.Agreement, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.otc.Status(id)
}

// --- auction calls ---

// CreateAuction persists a new open auction.
func (n *Node) CreateAuction(caller [20]byte, ownerOpt *[20]byte, denom string, rateNumerator, rateDenominator uint64, nonce [32]byte) (*auction.Auction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var created *auction.Auction
	err := n.execute("auction_create", func() ([]asset.Movement, error) {
		a, err := n.auctions.Create(caller, ownerOpt, denom, rateNumerator, rateDenominator, nonce)
		if err != nil {
			return nil, err
		}
		created = a
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// PlaceBid applies the caller's attached deposit to their running total.
func (n *Node) PlaceBid(id [32]byte, caller [20]byte, attached []asset.Coin) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.execute("auction_bid", func() ([]asset.Movement, error) {
		return n.auctions.Bid(id, caller, attached)
	})
	if err == nil {
		n.metrics.MarkBidAccepted()
	}
	return err
}

// CloseAuction settles the sale in favour of the owner.
func (n *Node) CloseAuction(id [32]byte, caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.execute("auction_close", func() ([]asset.Movement, error) {
		return n.auctions.Close(id, caller)
	})
	if err == nil {
		n.metrics.MarkAuctionClosed()
	}
	return err
}

// RetractBid refunds the caller's ledger entry after close.
func (n *Node) RetractBid(id [32]byte, caller [20]byte) error {
	return n.RetractBidTo(id, caller, caller)
}

// RetractBidTo refunds the caller's ledger entry after close to an explicit
// recipient.
func (n *Node) RetractBidTo(id [32]byte, caller, recipient [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.execute("auction_retract", func() ([]asset.Movement, error) {
		return n.auctions.RetractTo(id, caller, recipient)
	})
	if err == nil {
		n.metrics.MarkBidRetracted()
	}
	return err
}

// AuctionHighestBid reports the current high mark and leading bidder.
func (n *Node) AuctionHighestBid(id [32]byte) (*big.Int, *[20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.HighestBid(id)
}

// AuctionOwner reports the configured owner.
func (n *Node) AuctionOwner(id [32]byte) ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.Owner(id)
}

// AuctionIsClosed reports whether the auction has closed.
func (n *Node) AuctionIsClosed(id [32]byte) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.IsClosed(id)
}

// AuctionWinner reports the recorded winner after close.
func (n *Node) AuctionWinner(id [32]byte) ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.Winner(id)
}

// AuctionCurrentBid reports a bidder's cumulative net contribution.
func (n *Node) AuctionCurrentBid(id [32]byte, bidder [20]byte) (*big.Int, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.CurrentBid(id, bidder)
}

// --- ledger access ---

// BalanceOf reports a native balance.
func (n *Node) BalanceOf(addr [20]byte, denom string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bank.BalanceOf(addr, denom)
}

// TokenBalanceOf reports a managed token book balance.
func (n *Node) TokenBalanceOf(tokenAddr, holder [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens.BalanceOf(tokenAddr, holder)
}

// ApproveToken grants the module vault an allowance on a managed token book
// on behalf of the owner, committed immediately.
func (n *Node) ApproveToken(tokenAddr, owner, spender [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.tokens.Approve(tokenAddr, owner, spender, amount); err != nil {
		n.state.Discard()
		return err
	}
	return n.state.Commit()
}

// VaultAddress exposes the module escrow account, which token owners must
// approve before opening managed-asset agreements.
func (n *Node) VaultAddress() [20]byte {
	return n.state.VaultAddress()
}

// ApplyGenesis seeds the ledger from an allocation file and commits. It is a
// no-op on databases that were already seeded.
func (n *Node) ApplyGenesis(alloc *genesis.Allocation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	applied, err := n.state.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	if err := alloc.Apply(genesisSeeder{node: n}); err != nil {
		n.state.Discard()
		return err
	}
	n.state.MarkGenesisApplied()
	return n.state.Commit()
}

type genesisSeeder struct {
	node *Node
}

func (s genesisSeeder) SeedAccount(addr [20]byte, denom string, amount *big.Int) error {
	return s.node.bank.Credit(addr, denom, amount)
}

func (s genesisSeeder) SeedToken(tokenAddr, holder [20]byte, amount *big.Int) error {
	return s.node.tokens.Mint(tokenAddr, holder, amount)
}
