package tools

import (
	"context"
	"encoding/json"

	"github.com/frogteam/frogteam/llm"
)

func toolSchema(name, desc string, props map[string]string, required ...string) llm.ToolSchema {
	return llm.ToolSchema{Name: name, Description: desc, Parameters: ObjectSchema(props, required...)}
}

func (w *Workspace) getFileContent(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		FileName string `json:"fileName"`
	}
	if err := DecodeArgs(raw, &args); err != nil {
		return "", err
	}
	return w.ReadFile(ctx, args.FileName)
}

func (w *Workspace) saveContent(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Content  string `json:"content"`
		FileName string `json:"fileName"`
	}
	if err := DecodeArgs(raw, &args); err != nil {
		return "", err
	}
	if err := w.WriteFile(ctx, args.FileName, args.Content); err != nil {
		return "", err
	}
	return "Content written to " + args.FileName, nil
}

func (w *Workspace) codeSearch(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		SearchTerm  string `json:"searchTerm"`
		FilePattern string `json:"filePattern"`
	}
	if err := DecodeArgs(raw, &args); err != nil {
		return "", err
	}
	files, err := w.Search(ctx, args.SearchTerm, args.FilePattern)
	if err != nil {
		return "", err
	}
	return FilesXML(files), nil
}
