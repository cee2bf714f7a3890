package types

// CombatStatus is the lifecycle state of a wagered combat session.
type CombatStatus uint8

const (
	CombatActive CombatStatus = iota
	CombatChallengerWon
	CombatOpponentWon
	CombatDraw
)

// String renders the status for events and RPC responses.
func (s CombatStatus) String() string {
	switch s {
	case CombatChallengerWon:
		return "challenger_won"
	case CombatOpponentWon:
		return "opponent_won"
	case CombatDraw:
		return "draw"
	default:
		return "active"
	}
}

// CombatSession is the record behind one wagered 1v1 fight. The challenger
// escrows their wager at initiation; the opponent escrows on their first
// turn, so EscrowedAmount tracks what the session actually holds.
type CombatSession struct {
	SessionID       uint64       `json:"sessionId"`
	Challenger      [32]byte     `json:"challenger"`
	Opponent        [32]byte     `json:"opponent"`
	ChallengerOwner [20]byte     `json:"challengerOwner"`
	OpponentOwner   [20]byte     `json:"opponentOwner"`
	WagerAmount     uint64       `json:"wagerAmount"`
	EscrowedAmount  uint64       `json:"escrowedAmount"`
	TurnCount       uint8        `json:"turnCount"`
	ChallengerHP    uint16       `json:"challengerHp"`
	OpponentHP      uint16       `json:"opponentHp"`
	LastTurnAt      int64        `json:"lastTurnAt"`
	CombatSeed      uint64       `json:"combatSeed"`
	Status          CombatStatus `json:"status"`
}

// Clone returns a copy of the session.
func (s *CombatSession) Clone() *CombatSession {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// IsActive reports whether turns can still be executed.
func (s *CombatSession) IsActive() bool { return s.Status == CombatActive }

// IsFinished reports whether the session reached a terminal status.
func (s *CombatSession) IsFinished() bool { return !s.IsActive() }

// IsParticipant reports whether addr owns either side of the fight.
func (s *CombatSession) IsParticipant(addr [20]byte) bool {
	return addr == s.ChallengerOwner || addr == s.OpponentOwner
}

// Winner returns the winning beast, if any.
func (s *CombatSession) Winner() ([32]byte, bool) {
	switch s.Status {
	case CombatChallengerWon:
		return s.Challenger, true
	case CombatOpponentWon:
		return s.Opponent, true
	default:
		return [32]byte{}, false
	}
}
