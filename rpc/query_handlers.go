package rpc

import (
	"encoding/json"
	"net/http"

	"zenbeasts/native/beast"
)

type beastIDParams struct {
	BeastID string `json:"beastId"`
}

type accountParams struct {
	Address string `json:"address"`
}

type supplyResult struct {
	Supply string `json:"supply"`
}

type previewUpgradeParams struct {
	BeastID    string `json:"beastId"`
	TraitIndex uint8  `json:"traitIndex"`
}

type previewBreedingParams struct {
	ParentA string `json:"parentA"`
	ParentB string `json:"parentB"`
}

type costResult struct {
	Cost uint64 `json:"cost"`
}

func (s *Server) handleGetBeast(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p beastIDParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseBeastID(p.BeastID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.node.GetBeast(id)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	claimable, err := s.node.ClaimableRewards(id)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	cfg, err := s.node.GetConfig()
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	result := formatBeast(record)
	result.RarityTier = beast.TierFor(record.RarityScore, cfg.RarityThresholds).String()
	result.Claimable = &claimable
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p accountParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(p.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := s.node.GetAccount(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeBeastInternal, "internal_error", err.Error())
		return
	}
	balance := "0"
	if account.BalanceZen != nil {
		balance = account.BalanceZen.String()
	}
	writeResult(w, req.ID, AccountResult{
		Address:    formatAddress(addr),
		Nonce:      account.Nonce,
		BalanceZen: balance,
	})
}

func (s *Server) handleTokenSupply(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	supply, err := s.node.TokenSupply()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeBeastInternal, "internal_error", err.Error())
		return
	}
	writeResult(w, req.ID, supplyResult{Supply: supply.String()})
}

func (s *Server) handlePreviewUpgrade(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p previewUpgradeParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseBeastID(p.BeastID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", err.Error())
		return
	}
	cost, err := s.node.PreviewUpgrade(id, p.TraitIndex)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, costResult{Cost: cost})
}

func (s *Server) handlePreviewBreeding(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeBeastInvalidParams, "invalid_params", "exactly one parameter object expected")
		return
	}
	var p previewBreedingParams
	if err := json.Unmarshal(req.Params[0], &p); err != nil {
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
	cost, err := s.node.PreviewBreeding(parentA, parentB)
	if err != nil {
		writeBeastError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, costResult{Cost: cost})
}
