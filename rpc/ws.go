package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"zenbeasts/core/journal"
	"zenbeasts/observability"
)

const (
	wsWriteTimeout    = 10 * time.Second
	wsSubscribeBuffer = 64
)

// handleEventsWS streams journal entries: backlog from the requested cursor
// first, then live appends. Clients that fall behind the subscription buffer
// miss entries and should reconnect from their last seen sequence.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	store := s.node.Journal()
	if store == nil {
		http.Error(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	cursor := uint64(0)
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	observability.RPC().WSConnected()
	defer observability.RPC().WSDisconnected()

	if err := s.streamEvents(r.Context(), conn, store, cursor); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, store *journal.Store, cursor uint64) error {
	live, cancel := store.Subscribe(wsSubscribeBuffer)
	defer cancel()

	// Replay the backlog first; the subscription opened above catches
	// anything appended while we page.
	lastSent := uint64(0)
	from := cursor
	for {
		entries, err := store.Read(from, journal.MaxReadLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			break
		}
		for _, entry := range entries {
			if err := writeEntry(ctx, conn, entry); err != nil {
				return err
			}
			lastSent = entry.Sequence
		}
		from = lastSent + 1
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-live:
			if !ok {
				return nil
			}
			if entry.Sequence <= lastSent {
				continue
			}
			if err := writeEntry(ctx, conn, entry); err != nil {
				return err
			}
			lastSent = entry.Sequence
		}
	}
}

func writeEntry(ctx context.Context, conn *websocket.Conn, entry journal.Entry) error {
	data, err := json.Marshal(formatEntry(entry))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
