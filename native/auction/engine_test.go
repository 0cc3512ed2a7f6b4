package auction

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"otcvault/core/events"
	"otcvault/core/types"
	"otcvault/native/asset"
)

type mockState struct {
	auctions map[[32]byte]*Auction
	entries  map[[32]byte]map[[20]byte]*big.Int
	vault    [20]byte
}

func newMockState() *mockState {
	return &mockState{
		auctions: make(map[[32]byte]*Auction),
		entries:  make(map[[32]byte]map[[20]byte]*big.Int),
		vault:    newTestAddress(0xEE),
	}
}

func (m *mockState) AuctionPut(a *Auction) error {
	sanitized, err := Sanitize(a)
	if err != nil {
		return err
	}
	m.auctions[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) AuctionGet(id [32]byte) (*Auction, bool, error) {
	a, ok := m.auctions[id]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (m *mockState) BidEntryPut(auctionID [32]byte, bidder [20]byte, total *big.Int) error {
	byBidder, ok := m.entries[auctionID]
	if !ok {
		byBidder = make(map[[20]byte]*big.Int)
		m.entries[auctionID] = byBidder
	}
	byBidder[bidder] = new(big.Int).Set(total)
	return nil
}

func (m *mockState) BidEntryGet(auctionID [32]byte, bidder [20]byte) (*big.Int, bool, error) {
	byBidder, ok := m.entries[auctionID]
	if !ok {
		return big.NewInt(0), false, nil
	}
	total, ok := byBidder[bidder]
	if !ok {
		return big.NewInt(0), false, nil
	}
	return new(big.Int).Set(total), true, nil
}

func (m *mockState) BidEntryDelete(auctionID [32]byte, bidder [20]byte) error {
	if byBidder, ok := m.entries[auctionID]; ok {
		delete(byBidder, bidder)
	}
	return nil
}

func (m *mockState) VaultAddress() [20]byte { return m.vault }

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *capturingEmitter) typesEvents() []*types.Event {
	out := make([]*types.Event, 0, len(c.events))
	for _, evt := range c.events {
		if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
			out = append(out, carrier.Event())
		}
	}
	return out
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func testNonce(n byte) [32]byte {
	var nonce [32]byte
	nonce[31] = n
	return nonce
}

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine
}

// createAuction sets up a 5% commission auction in "atom" owned by its
// creator.
func createAuction(t *testing.T, engine *Engine, owner [20]byte) *Auction {
	t.Helper()
	a, err := engine.Create(owner, nil, "atom", 5, 100, testNonce(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func coins(amount int64) []asset.Coin {
	return []asset.Coin{{Denom: "atom", Amount: big.NewInt(amount)}}
}

func directAmount(t *testing.T, m asset.Movement, from, to [20]byte) *big.Int {
	t.Helper()
	dt, ok := m.(asset.DirectTransfer)
	if !ok {
		t.Fatalf("expected direct transfer, got %T", m)
	}
	if dt.From != from || dt.To != to {
		t.Fatalf("expected transfer %x->%x, got %x->%x", from, to, dt.From, dt.To)
	}
	return dt.Amount
}

func TestCreateValidations(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := newTestAddress(0x01)

	cases := []struct {
		name    string
		denom   string
		num     uint64
		den     uint64
		wantErr bool
	}{
		{"ok", "atom", 5, 100, false},
		{"empty denom", " ", 5, 100, true},
		{"zero denominator", "atom", 5, 0, true},
		{"rate at one", "atom", 100, 100, true},
		{"rate above one", "atom", 101, 100, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Create(owner, nil, tc.denom, tc.num, tc.den, testNonce(byte(10+tc.num)))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateDefaultsOwnerAndRejectsDuplicates(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	creator := newTestAddress(0x01)
	delegate := newTestAddress(0x09)

	first, err := engine.Create(creator, nil, "atom", 5, 100, testNonce(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Owner != creator {
		t.Fatalf("expected owner to default to creator")
	}
	if _, err := engine.Create(creator, nil, "atom", 5, 100, testNonce(1)); !errors.Is(err, ErrExists) {
		t.Fatalf("expected duplicate create to fail, got %v", err)
	}

	second, err := engine.Create(creator, &delegate, "atom", 5, 100, testNonce(2))
	if err != nil {
		t.Fatalf("create with explicit owner: %v", err)
	}
	if second.Owner != delegate {
		t.Fatalf("expected explicit owner %x, got %x", delegate, second.Owner)
	}
}

func TestBidSkimsCommissionAndAccumulates(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := newTestAddress(0x01)
	bidderX := newTestAddress(0x02)
	bidderY := newTestAddress(0x03)
	a := createAuction(t, engine, owner)

	// 1000 at 5% skims 50 to the owner and escrows 950.
	movements, err := engine.Bid(a.ID, bidderX, coins(1000))
	if err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("expected commission and escrow movements, got %d", len(movements))
	}
	if got := directAmount(t, movements[0], bidderX, owner); got.String() != "50" {
		t.Fatalf("expected 50 commission, got %s", got)
	}
	if got := directAmount(t, movements[1], bidderX, state.vault); got.String() != "950" {
		t.Fatalf("expected 950 escrowed, got %s", got)
	}

	high, leader, err := engine.HighestBid(a.ID)
	if err != nil {
		t.Fatalf("highestBid: %v", err)
	}
	if high.String() != "950" || leader == nil || *leader != bidderX {
		t.Fatalf("expected 950 led by first bidder, got %s leader %v", high, leader)
	}

	// A competing 1200 nets 1140 and takes the lead.
	if _, err := engine.Bid(a.ID, bidderY, coins(1200)); err != nil {
		t.Fatalf("second bid: %v", err)
	}
	high, leader, err = engine.HighestBid(a.ID)
	if err != nil {
		t.Fatalf("highestBid: %v", err)
	}
	if high.String() != "1140" || *leader != bidderY {
		t.Fatalf("expected 1140 led by second bidder, got %s leader %x", high, *leader)
	}

	// The first bidder tops up 2000: 950 + 1900 = 2850 cumulative.
	if _, err := engine.Bid(a.ID, bidderX, coins(2000)); err != nil {
		t.Fatalf("top-up bid: %v", err)
	}
	total, found, err := engine.CurrentBid(a.ID, bidderX)
	if err != nil || !found {
		t.Fatalf("currentBid: found=%v err=%v", found, err)
	}
	if total.String() != "2850" {
		t.Fatalf("expected cumulative 2850, got %s", total)
	}
	high, leader, err = engine.HighestBid(a.ID)
	if err != nil {
		t.Fatalf("highestBid: %v", err)
	}
	if high.String() != "2850" || *leader != bidderX {
		t.Fatalf("expected 2850 led by first bidder, got %s leader %x", high, *leader)
	}
}

func TestBidRejections(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := newTestAddress(0x01)
	bidderX := newTestAddress(0x02)
	bidderY := newTestAddress(0x03)
	a := createAuction(t, engine, owner)

	if _, err := engine.Bid(a.ID, bidderX, nil); !errors.Is(err, ErrBidEmpty) {
		t.Fatalf("expected ErrBidEmpty for no funds, got %v", err)
	}
	wrongDenom := []asset.Coin{{Denom: "gold", Amount: big.NewInt(1000)}}
	if _, err := engine.Bid(a.ID, bidderX, wrongDenom); !errors.Is(err, ErrBidEmpty) {
		t.Fatalf("expected ErrBidEmpty for wrong denomination, got %v", err)
	}

	if _, err := engine.Bid(a.ID, bidderX, coins(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	// 500 nets 475, well below the 950 mark.
	if _, err := engine.Bid(a.ID, bidderY, coins(500)); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("expected ErrBidTooLow, got %v", err)
	}
	if _, found, err := engine.CurrentBid(a.ID, bidderY); err != nil || found {
		t.Fatalf("expected no ledger entry after rejected bid, found=%v err=%v", found, err)
	}
}

func TestBidTieTakesLead(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := newTestAddress(0x01)
	bidderX := newTestAddress(0x02)
	bidderY := newTestAddress(0x03)
	a := createAuction(t, engine, owner)

	if _, err := engine.Bid(a.ID, bidderX, coins(1000)); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	// An exact tie at 950 is accepted and the newer bidder leads.
	if _, err := engine.Bid(a.ID, bidderY, coins(1000)); err != nil {
		t.Fatalf("tying bid: %v", err)
	}
	high, leader, err := engine.HighestBid(a.ID)
	if err != nil {
		t.Fatalf("highestBid: %v", err)
	}
	if high.String() != "950" || *leader != bidderY {
		t.Fatalf("expected tie at 950 led by newest bidder, got %s leader %x", high, *leader)
	}
}

func TestClosePaysOwnerAndConsumesWinnerEntry(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)
	owner := newTestAddress(0x01)
	bidderX := newTestAddress(0x02)
	bidderY := newTestAddress(0x03)
	stranger := newTestAddress(0x04)
	a := createAuction(t, engine, owner)

	if _, err := engine.Bid(a.ID, bidderX, coins(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := engine.Bid(a.ID, bidderY, coins(1200)); err != nil {
		t.Fatalf("bid: %v", err)
	}

	_, err := engine.Close(a.ID, stranger)
	var notOwner NotOwnerError
	if !errors.As(err, &notOwner) || notOwner.Owner != owner {
		t.Fatalf("expected NotOwnerError carrying the owner, got %v", err)
	}

	movements, err := engine.Close(a.ID, owner)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected single payout movement, got %d", len(movements))
	}
	if got := directAmount(t, movements[0], state.vault, owner); got.String() != "1140" {
		t.Fatalf("expected owner to collect 1140, got %s", got)
	}

	winner, err := engine.Winner(a.ID)
	if err != nil {
		t.Fatalf("winner: %v", err)
	}
	if winner != bidderY {
		t.Fatalf("expected winner %x, got %x", bidderY, winner)
	}
	if _, found, err := engine.CurrentBid(a.ID, bidderY); err != nil || found {
		t.Fatalf("expected winner entry consumed, found=%v err=%v", found, err)
	}

	if _, err := engine.Close(a.ID, owner); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected second close to fail closed, got %v", err)
	}
	if _, err := engine.Bid(a.ID, bidderX, coins(5000)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected bid after close to fail closed, got %v", err)
	}

	closed := false
	for _, evt := range emitter.typesEvents() {
		if evt.Type == EventTypeClosed {
			closed = true
		}
	}
	if !closed {
		t.Fatalf("expected closed event")
	}
}

func TestCloseWithoutBidsFails(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := newTestAddress(0x01)
	a := createAuction(t, engine, owner)

	if _, err := engine.Close(a.ID, owner); !errors.Is(err, ErrNoBids) {
		t.Fatalf("expected ErrNoBids, got %v", err)
	}
	closed, err := engine.IsClosed(a.ID)
	if err != nil || closed {
		t.Fatalf("expected auction to stay open, closed=%v err=%v", closed, err)
	}
}

func TestRetractRefundsLosingEntryOnce(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := newTestAddress(0x01)
	bidderX := newTestAddress(0x02)
	bidderY := newTestAddress(0x03)
	a := createAuction(t, engine, owner)

	if _, err := engine.Bid(a.ID, bidderX, coins(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := engine.Bid(a.ID, bidderX, coins(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := engine.Bid(a.ID, bidderY, coins(3000)); err != nil {
		t.Fatalf("bid: %v", err)
	}

	if _, err := engine.Retract(a.ID, bidderX); !errors.Is(err, ErrNotClosed) {
		t.Fatalf("expected retract before close to fail, got %v", err)
	}

	if _, err := engine.Close(a.ID, owner); err != nil {
		t.Fatalf("close: %v", err)
	}

	movements, err := engine.Retract(a.ID, bidderX)
	if err != nil {
		t.Fatalf("retract: %v", err)
	}
	if got := directAmount(t, movements[0], state.vault, bidderX); got.String() != "1900" {
		t.Fatalf("expected 1900 refunded, got %s", got)
	}

	if _, err := engine.Retract(a.ID, bidderX); !errors.Is(err, ErrNoBids) {
		t.Fatalf("expected second retract to fail, got %v", err)
	}
	// The winner has no entry left to retract.
	if _, err := engine.Retract(a.ID, bidderY); !errors.Is(err, ErrNoBids) {
		t.Fatalf("expected winner retraction to fail, got %v", err)
	}
}

func TestRetractToPaysExplicitRecipient(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := newTestAddress(0x01)
	bidderX := newTestAddress(0x02)
	bidderY := newTestAddress(0x03)
	payout := newTestAddress(0x05)
	a := createAuction(t, engine, owner)

	if _, err := engine.Bid(a.ID, bidderX, coins(1000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := engine.Bid(a.ID, bidderY, coins(3000)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if _, err := engine.Close(a.ID, owner); err != nil {
		t.Fatalf("close: %v", err)
	}

	movements, err := engine.RetractTo(a.ID, bidderX, payout)
	if err != nil {
		t.Fatalf("retractTo: %v", err)
	}
	if got := directAmount(t, movements[0], state.vault, payout); got.String() != "950" {
		t.Fatalf("expected 950 paid to the recipient, got %s", got)
	}
}

func TestQueriesOnUnknownAuction(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	var id [32]byte
	id[0] = 0x42
	if _, _, err := engine.HighestBid(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from highestBid, got %v", err)
	}
	if _, err := engine.Owner(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from owner, got %v", err)
	}
	if _, err := engine.Winner(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from winner, got %v", err)
	}
}

func TestWinnerBeforeCloseFails(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := newTestAddress(0x01)
	a := createAuction(t, engine, owner)
	if _, err := engine.Winner(a.ID); !errors.Is(err, ErrNotClosed) {
		t.Fatalf("expected ErrNotClosed, got %v", err)
	}
}
