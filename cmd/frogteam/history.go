package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/frogteam/frogteam/agent/history"
	"github.com/frogteam/frogteam/config"
	"github.com/frogteam/frogteam/internal/database"
)

// openHistoryStore builds the configured history backend. The pool is non-nil
// only for the database backend and must be closed after the store.
func openHistoryStore(cfg *config.Config, logger *zap.Logger) (history.Store, *database.PoolManager, error) {
	storeCfg := history.StoreConfig{
		Type:        history.StoreType(cfg.History.StoreType),
		FilePath:    cfg.HistoryPath(),
		AutoMigrate: cfg.History.AutoMigrate,
		Redis: history.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		},
	}

	var pool *database.PoolManager
	if storeCfg.Type == history.StoreTypeDatabase {
		var err error
		pool, err = database.Open(cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := history.NewStore(storeCfg, pool.DB())
		if err != nil {
			_ = pool.Close()
			return nil, nil, err
		}
		return store, pool, nil
	}

	store, err := history.NewStore(storeCfg, nil)
	if err != nil {
		return nil, nil, err
	}
	return store, nil, nil
}

// =============================================================================
// 📜 history 命令
// =============================================================================

type historyOptions struct {
	limit        int
	conversation string
	project      string
	markdown     bool
	style        string
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	var opts historyOptions
	fs.IntVar(&opts.limit, "limit", 20, "Show the newest N entries (0 for all)")
	fs.StringVar(&opts.conversation, "conversation", "", "Only entries of this conversation")
	fs.StringVar(&opts.project, "project", "", "Only entries of this project")
	fs.BoolVar(&opts.markdown, "markdown", true, "Render multi-line answers as markdown")
	fs.StringVar(&opts.style, "style", "dark", "glamour style: dark, light, notty, auto")
	noColor := fs.Bool("no-color", false, "Disable colors")
	_ = fs.Parse(args)

	if *noColor {
		color.NoColor = true
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := zap.NewNop()

	store, pool, err := openHistoryStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history: %v\n", err)
		os.Exit(1)
	}
	ledger := history.NewLedger(store, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = ledger.Load(ctx)
	cancel()
	if err == nil {
		err = printHistory(os.Stdout, ledger, opts)
	}
	_ = ledger.Close()
	if pool != nil {
		_ = pool.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "history: %v\n", err)
		os.Exit(1)
	}
}

// selectEntries applies the conversation, project and limit filters.
func selectEntries(ledger *history.Ledger, opts historyOptions) []history.Entry {
	var entries []history.Entry
	if opts.conversation != "" {
		entries = ledger.FindEntriesByConversationID(opts.conversation, false)
	} else {
		entries = ledger.Entries()
	}
	if opts.project != "" {
		kept := entries[:0:0]
		for _, e := range entries {
			if e.ProjectName == opts.project {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if opts.limit > 0 && len(entries) > opts.limit {
		entries = entries[len(entries)-opts.limit:]
	}
	return entries
}

var (
	headerColor = color.New(color.FgHiBlack)
	askColor    = color.New(color.FgCyan, color.Bold)
	answerColor = color.New(color.FgGreen, color.Bold)
	errorColor  = color.New(color.FgRed, color.Bold)
	toolColor   = color.New(color.FgYellow)
)

func tagColor(tag history.LookupTag) *color.Color {
	switch tag {
	case history.TagError:
		return errorColor
	case history.TagToolOutput:
		return toolColor
	case history.TagProjectResponse, history.TagMemberResponse:
		return answerColor
	default:
		return askColor
	}
}

func printHistory(w io.Writer, ledger *history.Ledger, opts historyOptions) error {
	entries := selectEntries(ledger, opts)
	if len(entries) == 0 {
		fmt.Fprintln(w, "no history entries")
		return nil
	}

	var renderer *glamour.TermRenderer
	if opts.markdown {
		styleOpt := glamour.WithStandardStyle(opts.style)
		if opts.style == "auto" {
			styleOpt = glamour.WithAutoStyle()
		}
		r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(100))
		if err != nil {
			return fmt.Errorf("create markdown renderer: %w", err)
		}
		renderer = r
	}

	for _, e := range entries {
		headerColor.Fprintf(w, "%s  %s  %s  [%s]\n",
			e.Timestamp.Local().Format(time.DateTime), e.ID, e.ProjectName, e.LookupTag)
		askColor.Fprintf(w, "%s", e.AskBy)
		fmt.Fprintf(w, " -> ")
		tagColor(e.LookupTag).Fprintf(w, "%s", e.ResponseBy)
		if e.Model != "" {
			headerColor.Fprintf(w, " (%s)", e.Model)
		}
		fmt.Fprintln(w)

		if ask := strings.TrimSpace(e.Ask); ask != "" {
			fmt.Fprintf(w, "  Q: %s\n", firstLine(ask))
		}
		answer := e.Answer
		if renderer != nil && e.Markdown {
			out, err := renderer.Render(answer)
			if err == nil {
				answer = out
			}
		}
		fmt.Fprintln(w, answer)
		fmt.Fprintln(w)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
