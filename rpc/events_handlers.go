package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"zenbeasts/core/journal"
)

const codeEventsUnavailable = -32070

type eventsParams struct {
	Cursor uint64 `json:"cursor"`
	Limit  int    `json:"limit"`
}

type eventsResult struct {
	Entries    []EventEntry `json:"entries"`
	NextCursor uint64       `json:"nextCursor"`
	Head       uint64       `json:"head"`
}

// EventEntry is the RPC view of one journal entry; hashes are 0x-hex.
type EventEntry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	PrevHash   string            `json:"prevHash,omitempty"`
	Hash       string            `json:"hash"`
}

func formatEntry(entry journal.Entry) EventEntry {
	out := EventEntry{
		Sequence:   entry.Sequence,
		Type:       entry.Type,
		Attributes: entry.Attributes,
		Hash:       "0x" + hex.EncodeToString(entry.Hash),
	}
	if len(entry.PrevHash) > 0 {
		out.PrevHash = "0x" + hex.EncodeToString(entry.PrevHash)
	}
	return out
}

// handleEvents pages the journal from a cursor. The next cursor always points
// one past the last returned entry, so repeated calls walk the stream without
// gaps or repeats.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	store := s.node.Journal()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeEventsUnavailable, "journal_disabled", nil)
		return
	}
	var p eventsParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &p); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	entries, err := store.Read(p.Cursor, p.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "internal_error", err.Error())
		return
	}
	head, _ := store.Head()
	next := p.Cursor
	if next == 0 {
		next = 1
	}
	out := make([]EventEntry, len(entries))
	for i, entry := range entries {
		out[i] = formatEntry(entry)
		next = entry.Sequence + 1
	}
	writeResult(w, req.ID, eventsResult{Entries: out, NextCursor: next, Head: head})
}
