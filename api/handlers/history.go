package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/frogteam/frogteam/agent/history"
	"github.com/frogteam/frogteam/types"
	"go.uber.org/zap"
)

// HistoryHandler exposes the history ledger read-only, plus a live stream of
// new entries.
type HistoryHandler struct {
	ledger *history.Ledger
	logger *zap.Logger

	// StreamBuffer is the per-subscriber backlog before entries are dropped.
	StreamBuffer int
	// OriginPatterns are passed to the websocket handshake.
	OriginPatterns []string
}

// NewHistoryHandler 创建处理器
func NewHistoryHandler(ledger *history.Ledger, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{
		ledger:       ledger,
		logger:       logger.With(zap.String("handler", "history")),
		StreamBuffer: 64,
	}
}

// HandleList 处理 GET /api/v1/history?limit=N; limit keeps the newest N.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries := h.ledger.Entries()
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			WriteErrorMessage(w, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
			return
		}
		if n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}
	WriteSuccess(w, entries)
}

// HandleGet 处理 GET /api/v1/history/{id}
func (h *HistoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := h.ledger.FindEntryByID(id)
	if !ok {
		WriteError(w, types.Errorf(types.ErrNotFound, "history entry %s not found", id), h.logger)
		return
	}
	WriteSuccess(w, e)
}

// HandleChildren 处理 GET /api/v1/history/{id}/children
func (h *HistoryHandler) HandleChildren(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, nonNil(h.ledger.FindChildrenByID(r.PathValue("id"))))
}

// HandleThreads 处理 GET /api/v1/history/{id}/threads
func (h *HistoryHandler) HandleThreads(w http.ResponseWriter, r *http.Request) {
	threads := h.ledger.BuildConversationThreads(r.PathValue("id"))
	if threads == nil {
		threads = []history.Thread{}
	}
	WriteSuccess(w, threads)
}

// HandleProject 处理 GET /api/v1/history/{id}/project
func (h *HistoryHandler) HandleProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.ledger.GetProjectByHistoryID(r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"project": project})
}

// HandleConversation 处理 GET /api/v1/conversations/{id}?tool_only=true
func (h *HistoryHandler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	toolOnly, _ := strconv.ParseBool(r.URL.Query().Get("tool_only"))
	WriteSuccess(w, nonNil(h.ledger.FindEntriesByConversationID(r.PathValue("id"), toolOnly)))
}

// HandleGrouped 处理 GET /api/v1/history/grouped?by=date|project
func (h *HistoryHandler) HandleGrouped(w http.ResponseWriter, r *http.Request) {
	var groups []history.Group
	switch by := r.URL.Query().Get("by"); by {
	case "", "date":
		groups = h.ledger.GroupByDate()
	case "project":
		groups = h.ledger.GroupByProject()
	default:
		WriteError(w, types.Errorf(types.ErrInvalidRequest, "unsupported grouping %q", by), h.logger)
		return
	}
	if groups == nil {
		groups = []history.Group{}
	}
	WriteSuccess(w, groups)
}

// HandleStream 处理 GET /api/v1/history/stream: every entry appended after the
// connection opens is pushed as a JSON text frame.
func (h *HistoryHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		h.logger.Warn("websocket handshake failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	entries, cancel := h.ledger.Subscribe(h.StreamBuffer)
	defer cancel()

	// the client never sends; CloseRead ends ctx when it goes away
	ctx := conn.CloseRead(r.Context())
	h.logger.Debug("history stream opened", zap.String("remote", r.RemoteAddr))

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-entries:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "ledger closed")
				return
			}
			writeCtx, done := context.WithTimeout(ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, conn, e)
			done()
			if err != nil {
				h.logger.Debug("history stream closed", zap.Error(err))
				return
			}
		}
	}
}

func nonNil(entries []history.Entry) []history.Entry {
	if entries == nil {
		return []history.Entry{}
	}
	return entries
}
