package auction

import (
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"otcvault/core/events"
	"otcvault/core/types"
	"otcvault/native/asset"
)

type engineState interface {
	AuctionPut(*Auction) error
	AuctionGet(id [32]byte) (*Auction, bool, error)
	BidEntryPut(auctionID [32]byte, bidder [20]byte, total *big.Int) error
	BidEntryGet(auctionID [32]byte, bidder [20]byte) (*big.Int, bool, error)
	BidEntryDelete(auctionID [32]byte, bidder [20]byte) error
	VaultAddress() [20]byte
}

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// Engine executes the auction state machine: cumulative bids with immediate
// owner commission, a monotonic high mark, and post-close refunds. Like the
// agreement engine it only produces movement directives; the host ledger
// executes them together with the state write.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an auction engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) load(id [32]byte) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	auction, ok, err := e.state.AuctionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return Sanitize(auction)
}

// AuctionID derives the deterministic identifier for an auction created by
// the caller with the given denomination and nonce.
func AuctionID(creator [20]byte, denom string, nonce [32]byte) [32]byte {
	return ethcrypto.Keccak256Hash(creator[:], []byte(strings.TrimSpace(denom)), nonce[:])
}

// Create persists a new open auction. The owner defaults to the creator when
// not supplied; denomination and commission rate are fixed for the auction's
// lifetime.
func (e *Engine) Create(caller [20]byte, ownerOpt *[20]byte, denom string, rateNumerator, rateDenominator uint64, nonce [32]byte) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	owner := caller
	if ownerOpt != nil && *ownerOpt != ([20]byte{}) {
		owner = *ownerOpt
	}
	auction := &Auction{
		ID:              AuctionID(caller, denom, nonce),
		Owner:           owner,
		Denom:           strings.TrimSpace(denom),
		RateNumerator:   rateNumerator,
		RateDenominator: rateDenominator,
		HighestBid:      big.NewInt(0),
		CreatedAt:       e.now(),
	}
	sanitized, err := Sanitize(auction)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.AuctionGet(sanitized.ID); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrExists
	}
	if err := e.state.AuctionPut(sanitized); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(sanitized))
	return sanitized.Clone(), nil
}

// Bid applies an attached deposit to the caller's running total. The
// commission share moves to the owner immediately and is never refunded; the
// contribution escrows into the vault. The resulting total must reach the
// current high mark, ties included, so the most recent tying bidder takes
// the lead.
func (e *Engine) Bid(id [32]byte, caller [20]byte, attached []asset.Coin) ([]asset.Movement, error) {
	auction, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if auction.Closed {
		return nil, ErrClosed
	}
	amount := asset.FindCoin(attached, auction.Denom)
	if amount.Sign() <= 0 {
		return nil, ErrBidEmpty
	}
	commission := new(big.Int).Mul(amount, new(big.Int).SetUint64(auction.RateNumerator))
	commission.Div(commission, new(big.Int).SetUint64(auction.RateDenominator))
	contribution := new(big.Int).Sub(amount, commission)

	prior, _, err := e.state.BidEntryGet(id, caller)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		prior = big.NewInt(0)
	}
	total := new(big.Int).Add(prior, contribution)
	if total.Cmp(auction.HighestBid) < 0 {
		return nil, ErrBidTooLow
	}

	vault := e.state.VaultAddress()
	movements := make([]asset.Movement, 0, 2)
	if commission.Sign() > 0 {
		movements = append(movements, auction.coin(commission).Transfer(caller, auction.Owner))
	}
	if contribution.Sign() > 0 {
		movements = append(movements, auction.coin(contribution).Transfer(caller, vault))
	}

	if err := e.state.BidEntryPut(id, caller, total); err != nil {
		return nil, err
	}
	auction.HighestBid = total
	bidder := caller
	auction.HighestBidder = &bidder
	if err := e.state.AuctionPut(auction); err != nil {
		return nil, err
	}
	e.emit(NewBidPlacedEvent(auction, caller))
	return movements, nil
}

// Close settles the sale: the high bid moves from the vault to the owner,
// the winner is recorded and their ledger entry consumed. Only the owner may
// close, and only once.
func (e *Engine) Close(id [32]byte, caller [20]byte) ([]asset.Movement, error) {
	auction, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if auction.Closed {
		return nil, ErrClosed
	}
	if auction.HighestBidder == nil {
		return nil, ErrNoBids
	}
	if caller != auction.Owner {
		return nil, NotOwnerError{Owner: auction.Owner}
	}
	vault := e.state.VaultAddress()
	movements := []asset.Movement{
		auction.coin(auction.HighestBid).Transfer(vault, auction.Owner),
	}
	winner := *auction.HighestBidder
	auction.Winner = &winner
	auction.Closed = true
	if err := e.state.BidEntryDelete(id, winner); err != nil {
		return nil, err
	}
	if err := e.state.AuctionPut(auction); err != nil {
		return nil, err
	}
	e.emit(NewClosedEvent(auction))
	return movements, nil
}

// Retract refunds the caller's full ledger entry after close.
func (e *Engine) Retract(id [32]byte, caller [20]byte) ([]asset.Movement, error) {
	return e.retract(id, caller, caller)
}

// RetractTo refunds the caller's full ledger entry after close to an
// explicit recipient.
func (e *Engine) RetractTo(id [32]byte, caller [20]byte, recipient [20]byte) ([]asset.Movement, error) {
	return e.retract(id, caller, recipient)
}

func (e *Engine) retract(id [32]byte, caller, recipient [20]byte) ([]asset.Movement, error) {
	auction, err := e.load(id)
	if err != nil {
		return nil, err
	}
	if !auction.Closed {
		return nil, ErrNotClosed
	}
	entry, ok, err := e.state.BidEntryGet(id, caller)
	if err != nil {
		return nil, err
	}
	if !ok || entry.Sign() == 0 {
		return nil, ErrNoBids
	}
	vault := e.state.VaultAddress()
	movements := []asset.Movement{
		auction.coin(entry).Transfer(vault, recipient),
	}
	if err := e.state.BidEntryDelete(id, caller); err != nil {
		return nil, err
	}
	e.emit(NewRetractedEvent(auction, caller, recipient, entry.String()))
	return movements, nil
}

// HighestBid reports the current high mark and, when any bid exists, the
// leading bidder.
func (e *Engine) HighestBid(id [32]byte) (*big.Int, *[20]byte, error) {
	auction, err := e.load(id)
	if err != nil {
		return nil, nil, err
	}
	return auction.HighestBid, auction.HighestBidder, nil
}

// Owner reports the configured auction owner.
func (e *Engine) Owner(id [32]byte) ([20]byte, error) {
	auction, err := e.load(id)
	if err != nil {
		return [20]byte{}, err
	}
	return auction.Owner, nil
}

// IsClosed reports whether the auction has been closed.
func (e *Engine) IsClosed(id [32]byte) (bool, error) {
	auction, err := e.load(id)
	if err != nil {
		return false, err
	}
	return auction.Closed, nil
}

// Winner reports the recorded winner. Querying before close fails with
// ErrNotClosed.
func (e *Engine) Winner(id [32]byte) ([20]byte, error) {
	auction, err := e.load(id)
	if err != nil {
		return [20]byte{}, err
	}
	if !auction.Closed || auction.Winner == nil {
		return [20]byte{}, ErrNotClosed
	}
	return *auction.Winner, nil
}

// CurrentBid reports the bidder's cumulative net contribution, with ok=false
// when no entry exists.
func (e *Engine) CurrentBid(id [32]byte, bidder [20]byte) (*big.Int, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	if _, err := e.load(id); err != nil {
		return nil, false, err
	}
	return e.state.BidEntryGet(id, bidder)
}
