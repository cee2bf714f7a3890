package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"zenbeasts/native/params"
)

const (
	codeGovInvalidParams = -32061
	codeGovForbidden     = -32062
	codeGovConflict      = -32063
	codeGovInternal      = -32064
)

type initializeParams struct {
	Authority   string        `json:"authority"`
	Treasury    string        `json:"treasury"`
	RewardToken string        `json:"rewardToken"`
	Params      economyParams `json:"params"`
}

// economyParams carries the numeric knobs of zb_initialize. Zero rarity
// thresholds fall back to the stock tiers.
type economyParams struct {
	ActivityCooldown int64 `json:"activityCooldown"`
	BreedingCooldown int64 `json:"breedingCooldown"`
	MaxBreedingCount uint8 `json:"maxBreedingCount"`

	UpgradeBaseCost      uint64 `json:"upgradeBaseCost"`
	UpgradeScalingFactor uint64 `json:"upgradeScalingFactor"`
	BreedingBaseCost     uint64 `json:"breedingBaseCost"`
	GenerationMultiplier uint64 `json:"generationMultiplier"`
	RewardRate           uint64 `json:"rewardRate"`
	BurnPercentage       uint8  `json:"burnPercentage"`

	RarityThresholds [5]uint64 `json:"rarityThresholds"`

	AbilityUnlockCost  uint64 `json:"abilityUnlockCost"`
	AbilityUpgradeCost uint64 `json:"abilityUpgradeCost"`

	CombatCooldown         int64  `json:"combatCooldown"`
	MinCombatWager         uint64 `json:"minCombatWager"`
	MaxCombatWager         uint64 `json:"maxCombatWager"`
	CombatTurnTimeout      int64  `json:"combatTurnTimeout"`
	CombatWinnerPercentage uint8  `json:"combatWinnerPercentage"`
}

type updateConfigParams struct {
	Caller  string         `json:"caller"`
	Changes params.Changes `json:"changes"`
	Delay   int64          `json:"delay"`
}

type transferAuthorityParams struct {
	Caller       string `json:"caller"`
	NewAuthority string `json:"newAuthority"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p initializeParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", err.Error())
		return
	}
	authority, err := parseAddress(p.Authority)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", err.Error())
		return
	}
	treasury, err := parseAddress(p.Treasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", err.Error())
		return
	}
	cfg := &params.Config{
		Authority:              authority,
		Treasury:               treasury,
		RewardToken:            strings.ToUpper(strings.TrimSpace(p.RewardToken)),
		ActivityCooldown:       p.Params.ActivityCooldown,
		BreedingCooldown:       p.Params.BreedingCooldown,
		MaxBreedingCount:       p.Params.MaxBreedingCount,
		UpgradeBaseCost:        p.Params.UpgradeBaseCost,
		UpgradeScalingFactor:   p.Params.UpgradeScalingFactor,
		BreedingBaseCost:       p.Params.BreedingBaseCost,
		GenerationMultiplier:   p.Params.GenerationMultiplier,
		RewardRate:             p.Params.RewardRate,
		BurnPercentage:         p.Params.BurnPercentage,
		RarityThresholds:       p.Params.RarityThresholds,
		AbilityUnlockCost:      p.Params.AbilityUnlockCost,
		AbilityUpgradeCost:     p.Params.AbilityUpgradeCost,
		CombatCooldown:         p.Params.CombatCooldown,
		MinCombatWager:         p.Params.MinCombatWager,
		MaxCombatWager:         p.Params.MaxCombatWager,
		CombatTurnTimeout:      p.Params.CombatTurnTimeout,
		CombatWinnerPercentage: p.Params.CombatWinnerPercentage,
	}
	if err := s.node.InitializeEconomy(cfg); err != nil {
		writeGovernanceError(w, req.ID, err)
		return
	}
	seeded, err := s.node.GetConfig()
	if err != nil {
		writeGovernanceError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatConfig(seeded))
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p updateConfigParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.UpdateConfig(caller, p.Changes, p.Delay); err != nil {
		writeGovernanceError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleTransferAuthority(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p transferAuthorityParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", err.Error())
		return
	}
	next, err := parseAddress(p.NewAuthority)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeGovInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TransferAuthority(caller, next); err != nil {
		writeGovernanceError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	cfg, err := s.node.GetConfig()
	if err != nil {
		writeGovernanceError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatConfig(cfg))
}

func writeGovernanceError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeGovInternal
	message := "internal_error"
	data := err.Error()
	switch {
	case errors.Is(err, params.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeGovForbidden
		message = "forbidden"
	case errors.Is(err, params.ErrInvalidConfiguration) || errors.Is(err, params.ErrInvalidDelay) ||
		errors.Is(err, params.ErrEmptyUpdate):
		status = http.StatusBadRequest
		code = codeGovInvalidParams
		message = "invalid_params"
	case errors.Is(err, params.ErrAlreadyInitialized) || errors.Is(err, params.ErrNotInitialized) ||
		errors.Is(err, params.ErrUpdatePending):
		status = http.StatusConflict
		code = codeGovConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, data)
}
