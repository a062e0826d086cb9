package assignment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/frogteam/frogteam/agent/history"
	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/llm/tools"
)

// FetchHistoryTool returns the latest response recorded for a directory or project.
const FetchHistoryTool = "fetchHistoryApi"

// RegisterHistoryTool adds fetchHistoryApi backed by ledger.
func RegisterHistoryTool(reg tools.ToolRegistry, ledger *history.Ledger) error {
	fn := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args struct {
			Directory string `json:"directory"`
		}
		if err := tools.DecodeArgs(raw, &args); err != nil {
			return "", err
		}
		e, ok := ledger.FetchLatestResponse(args.Directory)
		if !ok {
			return fmt.Sprintf("no history found for %s", args.Directory), nil
		}
		return formatHistoryEntry(e), nil
	}
	return reg.Register(FetchHistoryTool, fn, tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        FetchHistoryTool,
			Description: "Fetch the most recent team response recorded for a project directory.",
			Parameters: tools.ObjectSchema(map[string]string{
				"directory": "The project directory or project name",
			}, "directory"),
		},
	})
}

func formatHistoryEntry(e history.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", e.ProjectName)
	fmt.Fprintf(&b, "Responder: %s\n", e.ResponseBy)
	fmt.Fprintf(&b, "Asked by: %s\n", e.AskBy)
	fmt.Fprintf(&b, "Timestamp: %s\n", e.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Question: %s\n\n", e.Ask)
	b.WriteString(e.Answer)
	return b.String()
}
