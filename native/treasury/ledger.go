package treasury

import (
	"errors"
	"fmt"
	"math/big"

	"zenbeasts/core/events"
	"zenbeasts/core/types"
)

var (
	ErrInvalidBurnPercentage       = errors.New("treasury: burn percentage must be 0-100")
	ErrInsufficientFunds           = errors.New("treasury: insufficient payer balance")
	ErrInsufficientTreasuryBalance = errors.New("treasury: insufficient treasury balance")
	ErrSupplyUnderflow             = errors.New("treasury: burn exceeds token supply")
	ErrNilState                    = errors.New("treasury: state not configured")
)

// ledgerState is the slice of state the ledger needs: token accounts plus the
// circulating supply counter that burns draw down.
type ledgerState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	TokenSupply() (*big.Int, error)
	SetTokenSupply(*big.Int) error
}

type treasuryEvent struct {
	evt *types.Event
}

func (e treasuryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e treasuryEvent) Event() *types.Event { return e.evt.Copy() }

// Ledger books every token flow the economy produces: fee collection with a
// burn split, and treasury-funded payouts. It never decides prices; callers
// hand it settled amounts.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger creates a ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(event *types.Event) {
	if l == nil || l.emitter == nil || event == nil {
		return
	}
	l.emitter.Emit(treasuryEvent{evt: event})
}

// Settle splits a payment into its burned and treasury-retained portions:
// burn = amount * burnPercentage / 100 with truncating division, and the
// rounding remainder always stays with the treasury, never the burn.
func Settle(amount uint64, burnPercentage uint8) (uint64, uint64, error) {
	if burnPercentage > 100 {
		return 0, 0, ErrInvalidBurnPercentage
	}
	burn := new(big.Int).SetUint64(amount)
	burn.Mul(burn, new(big.Int).SetUint64(uint64(burnPercentage)))
	burn.Div(burn, big.NewInt(100))
	burnAmount := burn.Uint64()
	return burnAmount, amount - burnAmount, nil
}

// SettleEven is the fixed 50/50 split used by ability costs; the odd unit
// stays with the treasury.
func SettleEven(amount uint64) (uint64, uint64) {
	burn := amount / 2
	return burn, amount - burn
}

// Collect debits the payer for the full amount, burns the configured share
// out of the circulating supply, and credits the remainder to the treasury.
// The balance check runs before any mutation.
func (l *Ledger) Collect(payer, treasury [20]byte, amount uint64, burnPercentage uint8) (uint64, uint64, error) {
	burnAmount, treasuryAmount, err := Settle(amount, burnPercentage)
	if err != nil {
		return 0, 0, err
	}
	if err := l.apply(payer, treasury, amount, burnAmount, treasuryAmount); err != nil {
		return 0, 0, err
	}
	return burnAmount, treasuryAmount, nil
}

// CollectEven is Collect with the fixed even split.
func (l *Ledger) CollectEven(payer, treasury [20]byte, amount uint64) (uint64, uint64, error) {
	burnAmount, treasuryAmount := SettleEven(amount)
	if err := l.apply(payer, treasury, amount, burnAmount, treasuryAmount); err != nil {
		return 0, 0, err
	}
	return burnAmount, treasuryAmount, nil
}

func (l *Ledger) apply(payer, treasury [20]byte, amount, burnAmount, treasuryAmount uint64) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	total := new(big.Int).SetUint64(amount)

	payerAcc, err := l.state.GetAccount(payer)
	if err != nil {
		return err
	}
	payerAcc.EnsureDefaults()
	if payerAcc.BalanceZen.Cmp(total) < 0 {
		return fmt.Errorf("%w: need %d, have %s", ErrInsufficientFunds, amount, payerAcc.BalanceZen.String())
	}

	supply, err := l.state.TokenSupply()
	if err != nil {
		return err
	}
	burn := new(big.Int).SetUint64(burnAmount)
	if supply.Cmp(burn) < 0 {
		return ErrSupplyUnderflow
	}

	// The treasury paying its own fee must debit and credit one record, not
	// two loaded copies of it.
	treasuryAcc := payerAcc
	if treasury != payer {
		treasuryAcc, err = l.state.GetAccount(treasury)
		if err != nil {
			return err
		}
		treasuryAcc.EnsureDefaults()
	}

	payerAcc.BalanceZen = new(big.Int).Sub(payerAcc.BalanceZen, total)
	treasuryAcc.BalanceZen = new(big.Int).Add(treasuryAcc.BalanceZen, new(big.Int).SetUint64(treasuryAmount))
	newSupply := new(big.Int).Sub(supply, burn)

	if err := l.state.PutAccount(payer, payerAcc); err != nil {
		return err
	}
	if treasury != payer {
		if err := l.state.PutAccount(treasury, treasuryAcc); err != nil {
			return err
		}
	}
	if err := l.state.SetTokenSupply(newSupply); err != nil {
		return err
	}
	l.emit(NewCollectedEvent(payer, amount, burnAmount, treasuryAmount))
	return nil
}

// Payout moves tokens from the treasury to a recipient, failing before any
// mutation when the treasury cannot cover the amount.
func (l *Ledger) Payout(treasury, recipient [20]byte, amount uint64) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	value := new(big.Int).SetUint64(amount)

	treasuryAcc, err := l.state.GetAccount(treasury)
	if err != nil {
		return err
	}
	treasuryAcc.EnsureDefaults()
	if treasuryAcc.BalanceZen.Cmp(value) < 0 {
		return fmt.Errorf("%w: need %d, have %s", ErrInsufficientTreasuryBalance, amount, treasuryAcc.BalanceZen.String())
	}

	recipientAcc := treasuryAcc
	if recipient != treasury {
		recipientAcc, err = l.state.GetAccount(recipient)
		if err != nil {
			return err
		}
		recipientAcc.EnsureDefaults()
	}

	treasuryAcc.BalanceZen = new(big.Int).Sub(treasuryAcc.BalanceZen, value)
	recipientAcc.BalanceZen = new(big.Int).Add(recipientAcc.BalanceZen, value)

	if err := l.state.PutAccount(treasury, treasuryAcc); err != nil {
		return err
	}
	if recipient != treasury {
		if err := l.state.PutAccount(recipient, recipientAcc); err != nil {
			return err
		}
	}
	l.emit(NewPayoutEvent(treasury, recipient, amount))
	return nil
}

// Burn removes tokens held by an address from circulation, used when a combat
// pot's non-winner share is destroyed.
func (l *Ledger) Burn(holder [20]byte, amount uint64) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	value := new(big.Int).SetUint64(amount)

	holderAcc, err := l.state.GetAccount(holder)
	if err != nil {
		return err
	}
	holderAcc.EnsureDefaults()
	if holderAcc.BalanceZen.Cmp(value) < 0 {
		return fmt.Errorf("%w: need %d, have %s", ErrInsufficientFunds, amount, holderAcc.BalanceZen.String())
	}
	supply, err := l.state.TokenSupply()
	if err != nil {
		return err
	}
	if supply.Cmp(value) < 0 {
		return ErrSupplyUnderflow
	}

	holderAcc.BalanceZen = new(big.Int).Sub(holderAcc.BalanceZen, value)
	if err := l.state.PutAccount(holder, holderAcc); err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(new(big.Int).Sub(supply, value)); err != nil {
		return err
	}
	l.emit(NewBurnedEvent(holder, amount))
	return nil
}

// Transfer moves tokens between two arbitrary accounts, used for wager escrow
// flows that bypass the burn split.
func (l *Ledger) Transfer(from, to [20]byte, amount uint64) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	value := new(big.Int).SetUint64(amount)

	fromAcc, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	fromAcc.EnsureDefaults()
	if fromAcc.BalanceZen.Cmp(value) < 0 {
		return fmt.Errorf("%w: need %d, have %s", ErrInsufficientFunds, amount, fromAcc.BalanceZen.String())
	}
	if to == from {
		return nil
	}
	toAcc, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	toAcc.EnsureDefaults()

	fromAcc.BalanceZen = new(big.Int).Sub(fromAcc.BalanceZen, value)
	toAcc.BalanceZen = new(big.Int).Add(toAcc.BalanceZen, value)

	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}
