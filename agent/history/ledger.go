package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/frogteam/frogteam/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger is the append-only, indexed history log.
type Ledger struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu             sync.RWMutex
	entries        []Entry
	byID           map[string]int
	byParent       map[string][]int
	byConversation map[string][]int

	subMu  sync.Mutex
	subs   map[int]chan Entry
	nextID int
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock injects the timestamp source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator injects the entry id source.
func WithIDGenerator(gen func() string) LedgerOption {
	return func(l *Ledger) { l.newID = gen }
}

// NewLedger creates an empty ledger backed by store. Call Load to read the
// persisted log.
func NewLedger(store Store, logger *zap.Logger, opts ...LedgerOption) *Ledger {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:  store,
		logger: logger.With(zap.String("component", "history_ledger")),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		subs:   make(map[int]chan Entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.reindex(nil)
	return l
}

// Load replaces the in-memory log with the store's contents and rebuilds the indexes.
func (l *Ledger) Load(ctx context.Context) error {
	entries, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	l.mu.Lock()
	l.reindex(entries)
	l.mu.Unlock()
	l.logger.Info("history loaded", zap.Int("entries", len(entries)))
	return nil
}

func (l *Ledger) reindex(entries []Entry) {
	l.entries = entries
	l.byID = make(map[string]int, len(entries))
	l.byParent = make(map[string][]int)
	l.byConversation = make(map[string][]int)
	for i := range entries {
		l.indexLocked(i)
	}
}

func (l *Ledger) indexLocked(i int) {
	e := l.entries[i]
	l.byID[e.ID] = i
	if e.ParentID != "" {
		l.byParent[e.ParentID] = append(l.byParent[e.ParentID], i)
	}
	if e.ConversationID != "" {
		l.byConversation[e.ConversationID] = append(l.byConversation[e.ConversationID], i)
	}
}

func (l *Ledger) unindexLastLocked() {
	i := len(l.entries) - 1
	e := l.entries[i]
	delete(l.byID, e.ID)
	if e.ParentID != "" {
		trimLast(l.byParent, e.ParentID)
	}
	if e.ConversationID != "" {
		trimLast(l.byConversation, e.ConversationID)
	}
	l.entries = l.entries[:i]
}

func trimLast(m map[string][]int, key string) {
	idx := m[key]
	if len(idx) <= 1 {
		delete(m, key)
		return
	}
	m[key] = idx[:len(idx)-1]
}

// AddEntry appends a new entry, persists the log and notifies subscribers.
// The entry is rolled back when persisting fails.
func (l *Ledger) AddEntry(ctx context.Context, in NewEntry) (string, error) {
	if in.LookupTag != "" && !in.LookupTag.Valid() {
		return "", types.Errorf(types.ErrInvalidRequest, "unknown lookup tag %q", in.LookupTag)
	}
	e := Entry{
		ID:             l.newID(),
		AskBy:          in.AskBy,
		ResponseBy:     in.ResponseBy,
		Timestamp:      l.now().UTC(),
		Model:          in.Model,
		Ask:            in.Ask,
		Answer:         in.Answer,
		Markdown:       IsMarkdown(in.Answer),
		LookupTag:      in.LookupTag,
		ConversationID: in.ConversationID,
		ParentID:       in.ParentID,
		ProjectName:    projectOrDefault(in.ProjectName),
	}

	l.mu.Lock()
	if _, dup := l.byID[e.ID]; dup {
		l.mu.Unlock()
		return "", types.Errorf(types.ErrInternalError, "duplicate history id %s", e.ID)
	}
	l.entries = append(l.entries, e)
	l.indexLocked(len(l.entries) - 1)

	var err error
	if app, ok := l.store.(Appender); ok {
		err = app.Append(ctx, e)
	} else {
		err = l.store.Save(ctx, l.entries)
	}
	if err != nil {
		l.unindexLastLocked()
		l.mu.Unlock()
		l.logger.Error("persist history entry failed", zap.String("id", e.ID), zap.Error(err))
		return "", fmt.Errorf("persist history: %w", err)
	}
	l.mu.Unlock()

	l.logger.Debug("history entry added",
		zap.String("id", e.ID),
		zap.String("tag", string(e.LookupTag)),
		zap.String("conversation_id", e.ConversationID))
	l.publish(e)
	return e.ID, nil
}

// Entries returns a copy of the full log in append order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Subscribe returns a channel receiving every entry appended after the call
// and a function that cancels the subscription. Slow subscribers miss entries
// rather than blocking appends.
func (l *Ledger) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Entry, buffer)
	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subMu.Lock()
			delete(l.subs, id)
			l.subMu.Unlock()
			close(ch)
		})
	}
}

func (l *Ledger) publish(e Entry) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for id, ch := range l.subs {
		select {
		case ch <- e:
		default:
			l.logger.Warn("history subscriber is full, dropping entry", zap.Int("subscriber", id), zap.String("id", e.ID))
		}
	}
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
