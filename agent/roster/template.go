package roster

import (
	"sort"
	"strings"

	"github.com/frogteam/frogteam/types"
)

// Template variables available to prompts.
const (
	VarMembers  = "members"
	VarName     = "name"
	VarFileList = "file_list"
	VarQuestion = "question"
	VarProject  = "project"
	VarCaller   = "caller"
)

var allowedVars = map[string]bool{
	VarMembers: true, VarName: true, VarFileList: true,
	VarQuestion: true, VarProject: true, VarCaller: true,
}

// Template is a parsed prompt.
type Template struct {
	parts []templatePart
	vars  []string
}

type templatePart struct {
	literal string
	name    string
}

// ParseTemplate parses text, rejecting unknown or malformed placeholders.
func ParseTemplate(text string) (*Template, error) {
	t := &Template{}
	seen := make(map[string]bool)
	var lit strings.Builder

	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], `\${`):
			lit.WriteString("${")
			i += 3
		case strings.HasPrefix(text[i:], "${"):
			end := strings.IndexByte(text[i+2:], '}')
			if end < 0 {
				return nil, templateError("unterminated placeholder at offset %d", i)
			}
			name := strings.TrimSpace(text[i+2 : i+2+end])
			if !isIdentifier(name) {
				return nil, templateError("malformed placeholder ${%s}", text[i+2:i+2+end])
			}
			if !allowedVars[name] {
				return nil, templateError("unknown placeholder ${%s}", name)
			}
			if lit.Len() > 0 {
				t.parts = append(t.parts, templatePart{literal: lit.String()})
				lit.Reset()
			}
			t.parts = append(t.parts, templatePart{name: name})
			if !seen[name] {
				seen[name] = true
				t.vars = append(t.vars, name)
			}
			i += 2 + end + 1
		default:
			lit.WriteByte(text[i])
			i++
		}
	}
	if lit.Len() > 0 {
		t.parts = append(t.parts, templatePart{literal: lit.String()})
	}
	sort.Strings(t.vars)
	return t, nil
}

// Vars lists the placeholders used by the template.
func (t *Template) Vars() []string {
	out := make([]string, len(t.vars))
	copy(out, t.vars)
	return out
}

// Uses reports whether the template references name.
func (t *Template) Uses(name string) bool {
	i := sort.SearchStrings(t.vars, name)
	return i < len(t.vars) && t.vars[i] == name
}

// Execute substitutes values. A referenced variable missing from values
// renders as the empty string.
func (t *Template) Execute(values map[string]string) string {
	var b strings.Builder
	for _, p := range t.parts {
		if p.name == "" {
			b.WriteString(p.literal)
			continue
		}
		b.WriteString(values[p.name])
	}
	return b.String()
}

// Render parses and executes text in one step.
func Render(text string, values map[string]string) (string, error) {
	t, err := ParseTemplate(text)
	if err != nil {
		return "", err
	}
	return t.Execute(values), nil
}

func templateError(format string, args ...any) *types.Error {
	return types.Errorf(types.ErrConfigurationMissing, "prompt rejected: "+format, args...)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
