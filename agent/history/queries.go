package history

import (
	"sort"
	"strings"

	"github.com/frogteam/frogteam/types"
)

// Thread is one replayable human/assistant exchange.
type Thread struct {
	Human string `json:"human"`
	AI    string `json:"ai"`
}

// Group is an ordered bucket of entries.
type Group struct {
	Key     string  `json:"key"`
	Entries []Entry `json:"entries"`
}

// DateKeyLayout formats the day bucket used by GroupByDate.
const DateKeyLayout = "Mon Jan 02 2006"

// FindEntryByID returns the entry with id.
func (l *Ledger) FindEntryByID(id string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// FindChildrenByID returns the entries whose parent is parentID, in append order.
func (l *Ledger) FindChildrenByID(parentID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collectLocked(l.byParent[parentID], nil)
}

// FindEntriesByConversationID returns the conversation's entries in append
// order, optionally restricted to tool outputs.
func (l *Ledger) FindEntriesByConversationID(conversationID string, toolOnly bool) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var keep func(Entry) bool
	if toolOnly {
		keep = func(e Entry) bool { return e.LookupTag == TagToolOutput }
	}
	return l.collectLocked(l.byConversation[conversationID], keep)
}

func (l *Ledger) collectLocked(idx []int, keep func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(idx))
	for _, i := range idx {
		e := l.entries[i]
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// BuildConversationThreads reconstructs the exchanges under parentID. The
// parent and its children are filtered to responses; member responses come
// before project responses and each group keeps append order.
func (l *Ledger) BuildConversationThreads(parentID string) []Thread {
	l.mu.RLock()
	var candidates []Entry
	if i, ok := l.byID[parentID]; ok {
		candidates = append(candidates, l.entries[i])
	}
	candidates = append(candidates, l.collectLocked(l.byParent[parentID], nil)...)
	l.mu.RUnlock()

	var member, project []Thread
	for _, e := range candidates {
		switch e.LookupTag {
		case TagMemberResponse:
			member = append(member, Thread{Human: e.Ask, AI: e.Answer})
		case TagProjectResponse:
			project = append(project, Thread{Human: e.Ask, AI: e.Answer})
		}
	}
	return append(member, project...)
}

// GetProjectByHistoryID returns the project bucket of an entry.
func (l *Ledger) GetProjectByHistoryID(id string) (string, error) {
	e, ok := l.FindEntryByID(id)
	if !ok {
		return "", types.Errorf(types.ErrNotFound, "history entry %s not found", id)
	}
	return projectOrDefault(e.ProjectName), nil
}

// GroupByDate buckets entries by calendar day in order of first appearance.
func (l *Ledger) GroupByDate() []Group {
	return l.groupBy(func(e Entry) string { return e.Timestamp.Format(DateKeyLayout) })
}

// GroupByProject buckets entries by project in order of first appearance.
func (l *Ledger) GroupByProject() []Group {
	return l.groupBy(func(e Entry) string { return projectOrDefault(e.ProjectName) })
}

func (l *Ledger) groupBy(key func(Entry) string) []Group {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos := make(map[string]int)
	var groups []Group
	for _, e := range l.entries {
		k := key(e)
		i, ok := pos[k]
		if !ok {
			i = len(groups)
			pos[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}

// FetchLatestResponse returns the most recent response entry that belongs to
// target, matched against the project name or mentioned in the ask. An empty
// target matches every response.
func (l *Ledger) FetchLatestResponse(target string) (Entry, bool) {
	target = strings.TrimSpace(target)
	l.mu.RLock()
	defer l.mu.RUnlock()

	var matches []Entry
	for _, e := range l.entries {
		if !e.LookupTag.IsResponse() {
			continue
		}
		if target == "" || e.ProjectName == target || strings.Contains(e.Ask, target) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return Entry{}, false
	}
	// stable: equal timestamps resolve to the later append
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Timestamp.Before(matches[j].Timestamp) })
	return matches[len(matches)-1], true
}
