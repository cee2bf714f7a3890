package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"zenbeasts/native/beast"
	"zenbeasts/native/params"
	"zenbeasts/native/treasury"
)

const (
	codeBeastInvalidParams = -32031
	codeBeastNotFound      = -32032
	codeBeastForbidden     = -32033
	codeBeastConflict      = -32034
	codeBeastInternal      = -32035
)

type mintParams struct {
	Caller      string `json:"caller"`
	Name        string `json:"name"`
	MetadataURI string `json:"metadataUri"`
	Seed        uint64 `json:"seed"`
}

type activityParams struct {
	Caller       string `json:"caller"`
	BeastID      string `json:"beastId"`
	ActivityType uint8  `json:"activityType"`
}

type activityResult struct {
	Beast  BeastResult `json:"beast"`
	Earned uint64      `json:"earned"`
}

type claimParams struct {
	Caller  string `json:"caller"`
	BeastID string `json:"beastId"`
}

type claimResult struct {
	Claimed uint64 `json:"claimed"`
}

type upgradeTraitParams struct {
	Caller     string `json:"caller"`
	BeastID    string `json:"beastId"`
	TraitIndex uint8  `json:"traitIndex"`
	Payment    uint64 `json:"payment"`
}

type upgradeResult struct {
	Beast BeastResult `json:"beast"`
	Cost  uint64      `json:"cost"`
}

type breedParams struct {
	Caller      string `json:"caller"`
	ParentA     string `json:"parentA"`
	ParentB     string `json:"parentB"`
	Name        string `json:"name"`
	MetadataURI string `json:"metadataUri"`
	Seed        uint64 `json:"seed"`
	Payment     uint64 `json:"payment"`
}

type updateOwnerParams struct {
	Caller   string `json:"caller"`
	BeastID  string `json:"beastId"`
	NewOwner string `json:"newOwner"`
}

type repairParams struct {
	Caller      string `json:"caller"`
	BeastID     string `json:"beastId"`
	RarityScore uint64 `json:"rarityScore"`
}

type unlockAbilityParams struct {
	Caller     string `json:"caller"`
	BeastID    string `json:"beastId"`
	TraitIndex uint8  `json:"traitIndex"`
	AbilityID  uint8  `json:"abilityId"`
	Payment    uint64 `json:"payment"`
}

type upgradeAbilityParams struct {
	Caller     string `json:"caller"`
	BeastID    string `json:"beastId"`
	TraitIndex uint8  `json:"traitIndex"`
	Payment    uint64 `json:"payment"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func (s *Server) handleMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p mintParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	minted, err := s.node.Mint(caller, p.Name, p.MetadataURI, p.Seed)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatBeast(minted))
}

func (s *Server) handlePerformActivity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p activityParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseBeastID(p.BeastID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	updated, earned, err := s.node.PerformActivity(caller, id, p.ActivityType)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, activityResult{Beast: formatBeast(updated), Earned: earned})
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p claimParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseBeastID(p.BeastID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	claimed, err := s.node.ClaimRewards(caller, id)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimResult{Claimed: claimed})
}

func (s *Server) handleUpgradeTrait(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p upgradeTraitParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseBeastID(p.BeastID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	updated, cost, err := s.node.UpgradeTrait(caller, id, p.TraitIndex, p.Payment)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, upgradeResult{Beast: formatBeast(updated), Cost: cost})
}

func (s *Server) handleBreed(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p breedParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	parentA, err := parseBeastID(p.ParentA)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	parentB, err := parseBeastID(p.ParentB)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	child, err := s.node.Breed(caller, parentA, parentB, p.Name, p.MetadataURI, p.Seed, p.Payment)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatBeast(child))
}

func (s *Server) handleUpdateOwner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p updateOwnerParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseBeastID(p.BeastID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	newOwner, err := parseAddress(p.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.UpdateOwner(caller, id, newOwner); err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleRepairAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p repairParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseBeastID(p.BeastID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.RepairAccount(caller, id, p.RarityScore); err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleUnlockAbility(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p unlockAbilityParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseBeastID(p.BeastID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	updated, cost, err := s.node.UnlockAbility(caller, id, p.TraitIndex, p.AbilityID, p.Payment)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, upgradeResult{Beast: formatBeast(updated), Cost: cost})
}

func (s *Server) handleUpgradeAbility(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p upgradeAbilityParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseBeastID(p.BeastID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	updated, cost, err := s.node.UpgradeAbility(caller, id, p.TraitIndex, p.Payment)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, upgradeResult{Beast: formatBeast(updated), Cost: cost})
}

func writeBeastError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeBeastInternal
	message := "internal_error"
	data := err.Error()
	switch {
	case errors.Is(err, beast.ErrBeastNotFound):
		status = http.StatusNotFound
		code = codeBeastNotFound
		message = "not_found"
	case errors.Is(err, beast.ErrNotOwner) || errors.Is(err, beast.ErrUnauthorized) ||
		errors.Is(err, params.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeBeastForbidden
		message = "forbidden"
	case errors.Is(err, beast.ErrNameTooLong) || errors.Is(err, beast.ErrURITooLong) ||
		errors.Is(err, beast.ErrInvalidActivityType) || errors.Is(err, beast.ErrInvalidTraitIndex) ||
		errors.Is(err, beast.ErrInvalidAbilityID) || errors.Is(err, beast.ErrInvalidRarityScore) ||
		errors.Is(err, beast.ErrInvalidParents):
		status = http.StatusBadRequest
		code = codeBeastInvalidParams
		message = "invalid_params"
	case errors.Is(err, beast.ErrDuplicateURI) || errors.Is(err, beast.ErrBeastExists) ||
		errors.Is(err, beast.ErrCooldownActive) || errors.Is(err, beast.ErrBreedingCooldownActive) ||
		errors.Is(err, beast.ErrMaxBreedingReached) || errors.Is(err, beast.ErrNoRewardsToClaim) ||
		errors.Is(err, beast.ErrTraitMaxReached) || errors.Is(err, beast.ErrAbilityNotUnlocked) ||
		errors.Is(err, beast.ErrAbilityAlreadyUnlocked) || errors.Is(err, beast.ErrAbilityMaxLevel) ||
		errors.Is(err, beast.ErrInsufficientFunds) || errors.Is(err, beast.ErrInsufficientPayment) ||
		errors.Is(err, beast.ErrInvalidGeneration) || errors.Is(err, beast.ErrOwnerUnchanged) ||
		errors.Is(err, treasury.ErrInsufficientFunds) || errors.Is(err, params.ErrNotInitialized):
		status = http.StatusConflict
		code = codeBeastConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, data)
}
