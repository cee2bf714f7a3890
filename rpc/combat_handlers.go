package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"zenbeasts/native/combat"
	"zenbeasts/native/params"
	"zenbeasts/native/treasury"
)

const (
	codeCombatInvalidParams = -32051
	codeCombatNotFound      = -32052
	codeCombatForbidden     = -32053
	codeCombatConflict      = -32054
	codeCombatInternal      = -32055
)

type initiateCombatParams struct {
	Caller       string `json:"caller"`
	SessionID    uint64 `json:"sessionId"`
	ChallengerID string `json:"challengerId"`
	OpponentID   string `json:"opponentId"`
	Wager        uint64 `json:"wager"`
}

type combatTurnParams struct {
	Caller       string `json:"caller"`
	SessionID    uint64 `json:"sessionId"`
	AbilityIndex uint8  `json:"abilityIndex"`
}

type combatTurnResult struct {
	Session CombatResult `json:"session"`
	Effect  uint16       `json:"effect"`
}

type combatSessionParams struct {
	Caller    string `json:"caller,omitempty"`
	SessionID uint64 `json:"sessionId"`
}

func (s *Server) handleInitiateCombat(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p initiateCombatParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", err.Error())
		return
	}
	challenger, err := parseBeastID(p.ChallengerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", err.Error())
		return
	}
	opponent, err := parseBeastID(p.OpponentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", err.Error())
		return
	}
	session, err := s.node.InitiateCombat(caller, p.SessionID, challenger, opponent, p.Wager)
	if err != nil {
		writeCombatError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCombat(session))
}

func (s *Server) handleCombatTurn(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p combatTurnParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", err.Error())
		return
	}
	session, effect, err := s.node.ExecuteCombatTurn(caller, p.SessionID, p.AbilityIndex)
	if err != nil {
		writeCombatError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, combatTurnResult{Session: formatCombat(session), Effect: effect})
}

func (s *Server) handleResolveCombat(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p combatSessionParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", err.Error())
		return
	}
	session, err := s.node.ResolveCombat(caller, p.SessionID)
	if err != nil {
		writeCombatError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCombat(session))
}

func (s *Server) handleGetCombat(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p combatSessionParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeCombatInvalidParams, "invalid_params", err.Error())
		return
	}
	session, err := s.node.CombatSession(p.SessionID)
	if err != nil {
		writeCombatError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCombat(session))
}

func writeCombatError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeCombatInternal
	message := "internal_error"
	data := err.Error()
	switch {
	case errors.Is(err, combat.ErrSessionNotFound) || errors.Is(err, combat.ErrBeastNotFound):
		status = http.StatusNotFound
		code = codeCombatNotFound
		message = "not_found"
	case errors.Is(err, combat.ErrNotOwner) || errors.Is(err, combat.ErrNotParticipant):
		status = http.StatusForbidden
		code = codeCombatForbidden
		message = "forbidden"
	case errors.Is(err, combat.ErrSameBeast) || errors.Is(err, combat.ErrSelfCombat) ||
		errors.Is(err, combat.ErrInvalidAbilitySlot) || errors.Is(err, combat.ErrInvalidAbilityType) ||
		errors.Is(err, combat.ErrInsufficientWager):
		status = http.StatusBadRequest
		code = codeCombatInvalidParams
		message = "invalid_params"
	case errors.Is(err, combat.ErrSessionExists) || errors.Is(err, combat.ErrSessionActive) ||
		errors.Is(err, combat.ErrSessionFinished) || errors.Is(err, combat.ErrCooldownActive) ||
		errors.Is(err, combat.ErrOpponentUnavailable) || errors.Is(err, combat.ErrTurnTimeout) ||
		errors.Is(err, combat.ErrOutOfTurn) || errors.Is(err, combat.ErrAbilityNotUnlocked) ||
		errors.Is(err, treasury.ErrInsufficientFunds) || errors.Is(err, params.ErrNotInitialized):
		status = http.StatusConflict
		code = codeCombatConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, data)
}
