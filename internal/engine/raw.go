package engine

import (
	"context"
	"regexp"
	"strings"

	"github.com/ebb-sync/ebb/internal/adapter"
)

// dangerousKeywords flags statements that mutate data or schema. The
// sniffer is a lightweight keyword scan, not a parser; UnsafeExec exists
// for statements it refuses.
var dangerousKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create", "truncate",
	"replace", "vacuum", "attach", "detach", "reindex", "grant", "revoke",
	"pragma",
}

var wordPattern = regexp.MustCompile(`[a-zA-Z_]+`)

// RawQuery executes a caller-supplied statement after rejecting anything
// the keyword sniffer classifies as potentially dangerous.
func (e *Engine) RawQuery(ctx context.Context, stmt adapter.Statement) ([]adapter.Row, error) {
	if word, dangerous := classifyDangerous(stmt.Text); dangerous {
		return nil, unsupported("potentially dangerous query: statement contains %q", word)
	}
	rows, _, err := e.exec.ExecuteStatement(ctx, stmt, false)
	return rows, err
}

// UnsafeExec executes a caller-supplied statement with no sniffing.
func (e *Engine) UnsafeExec(ctx context.Context, stmt adapter.Statement) ([]adapter.Row, error) {
	rows, _, err := e.exec.ExecuteStatement(ctx, stmt, false)
	return rows, err
}

// classifyDangerous reports the first dangerous keyword appearing as a word
// in the statement.
func classifyDangerous(sql string) (string, bool) {
	for _, word := range wordPattern.FindAllString(strings.ToLower(sql), -1) {
		for _, kw := range dangerousKeywords {
			if word == kw {
				return kw, true
			}
		}
	}
	return "", false
}
