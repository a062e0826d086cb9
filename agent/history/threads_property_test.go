package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// Member responses always precede project responses in the rebuilt threads,
// and each kind keeps its append order, whatever order the children arrive in.
func TestProperty_ThreadOrderingIndependentOfInsertion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	tags := gen.OneConstOf(TagMemberResponse, TagProjectResponse, TagToolOutput, TagMemberTask)

	properties.Property("member pairs precede project pairs", prop.ForAll(
		func(children []LookupTag) bool {
			ctx := context.Background()
			l := NewLedger(NewMemoryStore(), zap.NewNop())
			parent, err := l.AddEntry(ctx, NewEntry{LookupTag: TagProjectDescription, Ask: "root"})
			if err != nil {
				return false
			}

			var wantMember, wantProject []Thread
			for i, tag := range children {
				ask := fmt.Sprintf("ask-%d", i)
				if _, err := l.AddEntry(ctx, NewEntry{LookupTag: tag, ParentID: parent, Ask: ask, Answer: ask}); err != nil {
					return false
				}
				switch tag {
				case TagMemberResponse:
					wantMember = append(wantMember, Thread{Human: ask, AI: ask})
				case TagProjectResponse:
					wantProject = append(wantProject, Thread{Human: ask, AI: ask})
				}
			}

			want := append(wantMember, wantProject...)
			got := l.BuildConversationThreads(parent)
			if len(got) != len(want) {
				t.Logf("len mismatch: got %d want %d", len(got), len(want))
				return false
			}
			for i := range want {
				if got[i] != want[i] {
					t.Logf("thread %d: got %+v want %+v", i, got[i], want[i])
					return false
				}
			}
			return true
		},
		gen.SliceOf(tags.Map(func(v LookupTag) LookupTag { return v })),
	))

	properties.TestingRun(t)
}
