package otc

import (
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"otcvault/core/events"
	"otcvault/core/types"
	"otcvault/native/asset"
	"otcvault/native/fees"
)

type engineState interface {
	AgreementPut(*Agreement) error
	AgreementGet(id [32]byte) (*Agreement, bool, error)
	VaultAddress() [20]byte
}

type otcEvent struct {
	evt *types.Event
}

func (e otcEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e otcEvent) Event() *types.Event { return e.evt }

// Engine executes the agreement state machine. Every operation validates its
// preconditions, computes the complete movement list, then mutates state:
// when an error is returned no movement has been produced and nothing was
// written. Movements are handed to the host ledger, never executed here.
type Engine struct {
	state      engineState
	commission fees.Policy
	emitter    events.Emitter
	nowFn      func() int64
}

// NewEngine creates an agreement engine with the given settlement commission
// policy and a no-op emitter.
func NewEngine(commission fees.Policy) *Engine {
	return &Engine{
		commission: commission.Clone(),
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
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
	e.emitter.Emit(otcEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadOpen(id [32]byte) (*Agreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	agreement, ok, err := e.state.AgreementGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	sanitized, err := Sanitize(agreement)
	if err != nil {
		return nil, err
	}
	if !sanitized.Open {
		return nil, ErrClosed
	}
	return sanitized, nil
}

// AgreementID derives the deterministic identifier for an agreement opened by
// the receiver with the given assets and nonce.
func AgreementID(receiver [20]byte, offer, price asset.Descriptor, nonce [32]byte) [32]byte {
	return ethcrypto.Keccak256Hash(
		receiver[:],
		descriptorBytes(offer),
		descriptorBytes(price),
		nonce[:],
	)
}

func descriptorBytes(d asset.Descriptor) []byte {
	out := []byte{byte(d.Kind)}
	out = append(out, []byte(d.Identifier())...)
	if d.Amount != nil {
		out = append(out, d.Amount.Bytes()...)
	}
	return out
}

func checkDescriptor(d asset.Descriptor) error {
	if d.Amount == nil || d.Amount.Sign() <= 0 {
		return ErrNoFunds
	}
	if !d.Valid() {
		return asset.ErrNotOneAsset
	}
	return nil
}

// Open escrows the caller's offer and persists a new open agreement. The
// returned movements pull the full offer from the caller into the module
// vault; commission is not taken here, it is deducted from the price at
// settlement time.
func (e *Engine) Open(caller [20]byte, offer, price asset.Descriptor, nonce [32]byte) (*Agreement, []asset.Movement, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if err := checkDescriptor(offer); err != nil {
		return nil, nil, err
	}
	if err := checkDescriptor(price); err != nil {
		return nil, nil, err
	}
	id := AgreementID(caller, offer, price, nonce)
	if _, ok, err := e.state.AgreementGet(id); err != nil {
		return nil, nil, err
	} else if ok {
		return nil, nil, ErrExists
	}
	vault := e.state.VaultAddress()
	movements := []asset.Movement{
		offer.TransferFrom(vault, caller, vault),
	}
	agreement := &Agreement{
		ID:        id,
		Offer:     offer.Clone(),
		Price:     price.Clone(),
		Receiver:  caller,
		Open:      true,
		CreatedAt: e.now(),
	}
	if err := e.state.AgreementPut(agreement); err != nil {
		return nil, nil, err
	}
	e.emit(NewOpenedEvent(agreement))
	return agreement.Clone(), movements, nil
}

// Buy settles an open agreement. The attached payment is validated against
// the stored price, then the movements pay the receiver the price net of
// commission, pay each commission share to its recipient, and hand the
// escrowed offer to the caller. The agreement ends Open=false,
// Completed=true.
func (e *Engine) Buy(id [32]byte, caller [20]byte, attached []asset.Coin) ([]asset.Movement, error) {
	agreement, err := e.loadOpen(id)
	if err != nil {
		return nil, err
	}
	price := agreement.Price
	if price.Kind == asset.Native {
		if asset.FindCoin(attached, price.Denom).Cmp(price.Amount) < 0 {
			return nil, ErrOfferFail
		}
	}
	vault := e.state.VaultAddress()
	split := e.commission.Apply(price.Amount)
	movements := make([]asset.Movement, 0, len(split.Shares)+2)
	if split.Remainder.Sign() > 0 {
		movements = append(movements, price.WithAmount(split.Remainder).TransferFrom(vault, caller, agreement.Receiver))
	}
	for i, share := range split.Shares {
		if share == nil || share.Sign() == 0 {
			continue
		}
		movements = append(movements, price.WithAmount(share).TransferFrom(vault, caller, e.commission.Recipients[i].Wallet))
	}
	movements = append(movements, agreement.Offer.Transfer(vault, caller))

	agreement.Open = false
	agreement.Completed = true
	if err := e.state.AgreementPut(agreement); err != nil {
		return nil, err
	}
	e.emit(NewSettledEvent(agreement, caller))
	return movements, nil
}

// Close cancels an open agreement and returns the full escrowed offer to the
// receiver. Only the receiver may cancel. The agreement ends Open=false,
// Completed=false.
func (e *Engine) Close(id [32]byte, caller [20]byte) ([]asset.Movement, error) {
	agreement, err := e.loadOpen(id)
	if err != nil {
		return nil, err
	}
	if caller != agreement.Receiver {
		return nil, NotOwnerError{Owner: agreement.Receiver}
	}
	vault := e.state.VaultAddress()
	movements := []asset.Movement{
		agreement.Offer.Transfer(vault, agreement.Receiver),
	}
	agreement.Open = false
	agreement.Completed = false
	if err := e.state.AgreementPut(agreement); err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(agreement))
	return movements, nil
}

// IsOpen reports whether the agreement still accepts a settling purchase.
func (e *Engine) IsOpen(id [32]byte) (bool, error) {
	agreement, err := e.Status(id)
	if err != nil {
		return false, err
	}
	return agreement.Open, nil
}

// Status returns a copy of the stored agreement. Read-only and side-effect
// free.
func (e *Engine) Status(id [32]byte) (*Agreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	agreement, ok, err := e.state.AgreementGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return agreement.Clone(), nil
}

// CommissionPolicy exposes the configured settlement commission for query
// surfaces.
func (e *Engine) CommissionPolicy() fees.Policy {
	return e.commission.Clone()
}

// PriceDue reports the total amount a buyer must attach to settle, which is
// simply the stored price; commission is carved out of it, not added on top.
func (e *Engine) PriceDue(id [32]byte) (*big.Int, string, error) {
	agreement, err := e.Status(id)
	if err != nil {
		return nil, "", err
	}
	return new(big.Int).Set(agreement.Price.Amount), agreement.Price.Identifier(), nil
}
