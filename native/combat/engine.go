package combat

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"zenbeasts/core/events"
	"zenbeasts/core/types"
	"zenbeasts/native/params"
	"zenbeasts/native/treasury"
)

// combatState is the slice of state the engine needs: beast records plus the
// session store.
type combatState interface {
	BeastGet(id [32]byte) (*types.BeastAccount, bool, error)
	BeastPut(b *types.BeastAccount) error
	CombatSessionGet(id uint64) (*types.CombatSession, bool, error)
	CombatSessionPut(s *types.CombatSession) error
	CombatSessionDelete(id uint64) error
}

type combatEvent struct {
	evt *types.Event
}

func (e combatEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e combatEvent) Event() *types.Event { return e.evt.Copy() }

// Engine runs wagered 1v1 combat sessions: initiation with escrow, alternating
// deterministic turns, and settlement of the pot. Like the beast engine, every
// method validates all preconditions before mutating anything.
type Engine struct {
	state   combatState
	gov     *params.Governor
	ledger  *treasury.Ledger
	emitter events.Emitter
	nowFn   func() time.Time
}

// NewEngine creates an engine with a no-op emitter. State, governor, and
// ledger must be wired before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   time.Now,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state combatState) { e.state = state }

// SetGovernor wires the config governor consulted on every operation.
func (e *Engine) SetGovernor(gov *params.Governor) { e.gov = gov }

// SetLedger wires the treasury ledger that moves wagers and burns the rake.
func (e *Engine) SetLedger(ledger *treasury.Ledger) { e.ledger = ledger }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the engine clock, primarily for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(combatEvent{evt: evt})
}

func (e *Engine) now() int64 { return e.nowFn().Unix() }

func (e *Engine) ready() error {
	if e.state == nil {
		return fmt.Errorf("combat: state not configured")
	}
	if e.gov == nil {
		return fmt.Errorf("combat: governor not configured")
	}
	if e.ledger == nil {
		return fmt.Errorf("combat: ledger not configured")
	}
	return nil
}

func (e *Engine) mustGetBeast(id [32]byte) (*types.BeastAccount, error) {
	b, ok, err := e.state.BeastGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || b == nil {
		return nil, fmt.Errorf("%w: %x", ErrBeastNotFound, id[:8])
	}
	return b, nil
}

func (e *Engine) mustGetSession(id uint64) (*types.CombatSession, error) {
	s, ok, err := e.state.CombatSessionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	return s, nil
}

// Session returns the stored session record, if any.
func (e *Engine) Session(id uint64) (*types.CombatSession, error) {
	if e.state == nil {
		return nil, fmt.Errorf("combat: state not configured")
	}
	s, err := e.mustGetSession(id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Initiate opens a wagered session between two beasts with distinct owners.
// The challenger's wager moves into the session escrow immediately; the
// opponent commits theirs by taking their first turn. Both beasts must be out
// of combat, past the combat cooldown, and hold at least one ability.
func (e *Engine) Initiate(caller [20]byte, sessionID uint64, challengerID, opponentID [32]byte, wager uint64) (*types.CombatSession, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return nil, err
	}
	if wager < cfg.MinCombatWager || wager > cfg.MaxCombatWager {
		return nil, fmt.Errorf("%w: %d outside [%d, %d]", ErrInsufficientWager, wager, cfg.MinCombatWager, cfg.MaxCombatWager)
	}
	if challengerID == opponentID {
		return nil, ErrSameBeast
	}

	challenger, err := e.mustGetBeast(challengerID)
	if err != nil {
		return nil, err
	}
	if challenger.Owner != caller {
		return nil, ErrNotOwner
	}
	opponent, err := e.mustGetBeast(opponentID)
	if err != nil {
		return nil, err
	}
	if opponent.Owner == caller {
		return nil, ErrSelfCombat
	}

	if _, ok, err := e.state.CombatSessionGet(sessionID); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %d", ErrSessionExists, sessionID)
	}

	now := e.now()
	if !challenger.CanEnterCombat(now, cfg.CombatCooldown) {
		return nil, ErrCooldownActive
	}
	if !opponent.CanEnterCombat(now, cfg.CombatCooldown) {
		return nil, ErrOpponentUnavailable
	}

	if err := e.ledger.Transfer(caller, EscrowAddress(sessionID), wager); err != nil {
		return nil, err
	}

	session := &types.CombatSession{
		SessionID:       sessionID,
		Challenger:      challengerID,
		Opponent:        opponentID,
		ChallengerOwner: challenger.Owner,
		OpponentOwner:   opponent.Owner,
		WagerAmount:     wager,
		EscrowedAmount:  wager,
		ChallengerHP:    challenger.MaxHP(),
		OpponentHP:      opponent.MaxHP(),
		LastTurnAt:      now,
		CombatSeed:      DeriveCombatSeed(sessionID, challengerID, opponentID, now),
		Status:          types.CombatActive,
	}

	challenger.Combat.InCombat = true
	challenger.ResetCombatVitals()
	opponent.Combat.InCombat = true
	opponent.ResetCombatVitals()

	if err := e.state.CombatSessionPut(session); err != nil {
		return nil, err
	}
	if err := e.state.BeastPut(challenger); err != nil {
		return nil, err
	}
	if err := e.state.BeastPut(opponent); err != nil {
		return nil, err
	}

	e.emit(NewInitiatedEvent(session, now))
	return session.Clone(), nil
}

// ExecuteTurn plays one turn of an active session. Turns alternate strictly,
// challenger first, and each must land inside the configured turn window. The
// executed slot decides the effect: vitality heals the attacker, every other
// slot damages the defender. The session finishes the moment a side's HP
// reaches zero, or as a draw when the turn limit is hit.
func (e *Engine) ExecuteTurn(caller [20]byte, sessionID uint64, abilityIndex uint8) (*types.CombatSession, uint16, error) {
	if err := e.ready(); err != nil {
		return nil, 0, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return nil, 0, err
	}

	session, err := e.mustGetSession(sessionID)
	if err != nil {
		return nil, 0, err
	}
	if session.IsFinished() {
		return nil, 0, ErrSessionFinished
	}
	if !session.IsParticipant(caller) {
		return nil, 0, ErrNotParticipant
	}

	now := e.now()
	if now-session.LastTurnAt >= cfg.CombatTurnTimeout {
		return nil, 0, fmt.Errorf("%w: %ds since last turn", ErrTurnTimeout, now-session.LastTurnAt)
	}

	isChallengerTurn := session.TurnCount%2 == 0
	attackerID, expectedOwner := session.Opponent, session.OpponentOwner
	if isChallengerTurn {
		attackerID, expectedOwner = session.Challenger, session.ChallengerOwner
	}
	if caller != expectedOwner {
		return nil, 0, ErrOutOfTurn
	}

	attacker, err := e.mustGetBeast(attackerID)
	if err != nil {
		return nil, 0, err
	}
	if int(abilityIndex) >= types.AbilitySlots {
		return nil, 0, fmt.Errorf("%w: %d", ErrInvalidAbilitySlot, abilityIndex)
	}
	if !attacker.HasAbilityUnlocked(abilityIndex) {
		return nil, 0, ErrAbilityNotUnlocked
	}

	// The opponent commits their wager by showing up for their first turn.
	if session.TurnCount == 1 {
		if session.EscrowedAmount > math.MaxUint64-session.WagerAmount {
			return nil, 0, ErrArithmeticOverflow
		}
		if err := e.ledger.Transfer(session.OpponentOwner, EscrowAddress(sessionID), session.WagerAmount); err != nil {
			return nil, 0, err
		}
		session.EscrowedAmount += session.WagerAmount
	}

	level := attacker.AbilityLevels[abilityIndex]
	effect, err := TurnEffect(session.CombatSeed, session.TurnCount, attacker.Traits[abilityIndex], level, abilityIndex)
	if err != nil {
		return nil, 0, err
	}

	cost := EnergyCost(level)
	if attacker.Combat.Energy >= cost {
		attacker.Combat.Energy -= cost
	} else {
		attacker.Combat.Energy = 0
	}

	if isChallengerTurn {
		if abilityIndex == AbilityVitality {
			session.ChallengerHP = healHP(session.ChallengerHP, effect, attacker.MaxHP())
		} else {
			session.OpponentHP = damageHP(session.OpponentHP, effect)
		}
	} else {
		if abilityIndex == AbilityVitality {
			session.OpponentHP = healHP(session.OpponentHP, effect, attacker.MaxHP())
		} else {
			session.ChallengerHP = damageHP(session.ChallengerHP, effect)
		}
	}

	session.TurnCount++
	session.LastTurnAt = now

	switch {
	case session.OpponentHP == 0:
		session.Status = types.CombatChallengerWon
	case session.ChallengerHP == 0:
		session.Status = types.CombatOpponentWon
	case session.TurnCount >= types.MaxTurns:
		session.Status = types.CombatDraw
	}

	if err := e.state.BeastPut(attacker); err != nil {
		return nil, 0, err
	}
	if err := e.state.CombatSessionPut(session); err != nil {
		return nil, 0, err
	}

	e.emit(NewTurnEvent(session, caller, abilityIndex, effect, now))
	return session.Clone(), effect, nil
}

// Resolve settles a finished session. A win pays the configured share of the
// escrowed pot to the winning owner and burns the remainder; a draw refunds
// both wagers. Tallies update, both beasts leave combat with a fresh cooldown
// anchor, and the session record is deleted.
func (e *Engine) Resolve(caller [20]byte, sessionID uint64) (*types.CombatSession, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cfg, err := e.gov.Effective()
	if err != nil {
		return nil, err
	}

	session, err := e.mustGetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsActive() {
		return nil, ErrSessionActive
	}
	if !session.IsParticipant(caller) {
		return nil, ErrNotParticipant
	}

	challenger, err := e.mustGetBeast(session.Challenger)
	if err != nil {
		return nil, err
	}
	opponent, err := e.mustGetBeast(session.Opponent)
	if err != nil {
		return nil, err
	}

	now := e.now()
	escrow := EscrowAddress(sessionID)
	pot := session.EscrowedAmount

	var payout, burned uint64
	switch session.Status {
	case types.CombatChallengerWon, types.CombatOpponentWon:
		payout = winnerShare(pot, cfg.CombatWinnerPercentage)
		burned = pot - payout
		winnerOwner := session.ChallengerOwner
		if session.Status == types.CombatOpponentWon {
			winnerOwner = session.OpponentOwner
		}
		if payout > 0 {
			if err := e.ledger.Transfer(escrow, winnerOwner, payout); err != nil {
				return nil, err
			}
		}
		if burned > 0 {
			if err := e.ledger.Burn(escrow, burned); err != nil {
				return nil, err
			}
		}
		winner, loser := challenger, opponent
		if session.Status == types.CombatOpponentWon {
			winner, loser = opponent, challenger
		}
		if winner.Combat.Wins < math.MaxUint32 {
			winner.Combat.Wins++
		}
		if loser.Combat.Losses < math.MaxUint32 {
			loser.Combat.Losses++
		}
	case types.CombatDraw:
		if session.WagerAmount > 0 {
			if err := e.ledger.Transfer(escrow, session.ChallengerOwner, session.WagerAmount); err != nil {
				return nil, err
			}
			if err := e.ledger.Transfer(escrow, session.OpponentOwner, session.WagerAmount); err != nil {
				return nil, err
			}
		}
	}

	challenger.Combat.InCombat = false
	challenger.Combat.LastCombatAt = now
	opponent.Combat.InCombat = false
	opponent.Combat.LastCombatAt = now

	if err := e.state.BeastPut(challenger); err != nil {
		return nil, err
	}
	if err := e.state.BeastPut(opponent); err != nil {
		return nil, err
	}
	if err := e.state.CombatSessionDelete(sessionID); err != nil {
		return nil, err
	}

	e.emit(NewResolvedEvent(session, caller, payout, burned, now))
	return session.Clone(), nil
}

// winnerShare follows the same truncating big.Int split the treasury uses.
func winnerShare(pot uint64, percentage uint8) uint64 {
	share := new(big.Int).SetUint64(pot)
	share.Mul(share, new(big.Int).SetUint64(uint64(percentage)))
	share.Div(share, big.NewInt(100))
	return share.Uint64()
}

func healHP(hp, amount, max uint16) uint16 {
	healed := uint32(hp) + uint32(amount)
	if healed > uint32(max) {
		healed = uint32(max)
	}
	return uint16(healed)
}

func damageHP(hp, amount uint16) uint16 {
	if amount >= hp {
		return 0
	}
	return hp - amount
}
