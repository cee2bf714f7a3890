package combat

import (
	"encoding/hex"
	"strconv"

	"zenbeasts/core/types"
)

const (
	EventTypeCombatInitiated = "combat.initiated"
	EventTypeCombatTurn      = "combat.turn"
	EventTypeCombatResolved  = "combat.resolved"
)

func sessionAttrs(s *types.CombatSession) map[string]string {
	attrs := make(map[string]string)
	if s == nil {
		return attrs
	}
	attrs["sessionId"] = strconv.FormatUint(s.SessionID, 10)
	attrs["challenger"] = hex.EncodeToString(s.Challenger[:])
	attrs["opponent"] = hex.EncodeToString(s.Opponent[:])
	return attrs
}

// NewInitiatedEvent announces a freshly opened session and its wager.
func NewInitiatedEvent(s *types.CombatSession, timestamp int64) *types.Event {
	attrs := sessionAttrs(s)
	if s != nil {
		attrs["challengerOwner"] = hex.EncodeToString(s.ChallengerOwner[:])
		attrs["opponentOwner"] = hex.EncodeToString(s.OpponentOwner[:])
		attrs["wagerAmount"] = strconv.FormatUint(s.WagerAmount, 10)
	}
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeCombatInitiated, Attributes: attrs}
}

// NewTurnEvent carries the executed turn and both HP totals so a spectator
// stream can replay the fight without reading state.
func NewTurnEvent(s *types.CombatSession, executor [20]byte, abilitySlot uint8, effect uint16, timestamp int64) *types.Event {
	attrs := sessionAttrs(s)
	attrs["executor"] = hex.EncodeToString(executor[:])
	attrs["abilitySlot"] = strconv.FormatUint(uint64(abilitySlot), 10)
	attrs["effect"] = strconv.FormatUint(uint64(effect), 10)
	if s != nil {
		attrs["turnCount"] = strconv.FormatUint(uint64(s.TurnCount), 10)
		attrs["challengerHp"] = strconv.FormatUint(uint64(s.ChallengerHP), 10)
		attrs["opponentHp"] = strconv.FormatUint(uint64(s.OpponentHP), 10)
		attrs["status"] = s.Status.String()
	}
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeCombatTurn, Attributes: attrs}
}

// NewResolvedEvent records where the escrowed pot went.
func NewResolvedEvent(s *types.CombatSession, resolver [20]byte, payout, burned uint64, timestamp int64) *types.Event {
	attrs := sessionAttrs(s)
	attrs["resolver"] = hex.EncodeToString(resolver[:])
	if s != nil {
		attrs["status"] = s.Status.String()
		attrs["totalPot"] = strconv.FormatUint(s.EscrowedAmount, 10)
		if winner, ok := s.Winner(); ok {
			attrs["winner"] = hex.EncodeToString(winner[:])
		}
	}
	attrs["winnerPayout"] = strconv.FormatUint(payout, 10)
	attrs["burnedAmount"] = strconv.FormatUint(burned, 10)
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeCombatResolved, Attributes: attrs}
}
