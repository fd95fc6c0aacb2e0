package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/ebb-sync/ebb/internal/sqlgen"
)

// Shape describes one table of a replication subscription: the table, the
// relation fields followed from it, and the compiled root filter.
type Shape struct {
	Table   string
	Include []string
	Where   string
}

// CompileSyncWhere turns a sync where into the server-side SQL fragment. A
// string passes through verbatim; an object compiles each entry to a filter
// fragment, interpolates its arguments into a fully-materialized string, and
// joins the parenthesized fragments with AND.
func (e *Engine) CompileSyncWhere(where any) (string, error) {
	switch w := where.(type) {
	case nil:
		return "", nil
	case string:
		return w, nil
	case map[string]any:
		var parts []string
		for _, key := range sortedKeys(w) {
			frags, err := sqlgen.MakeFilter(w[key], key, "this")
			if err != nil {
				return "", invalidArgument("%s", err.Error())
			}
			for _, frag := range frags {
				materialized, err := interpolateArgs(frag.SQL, frag.Args)
				if err != nil {
					return "", err
				}
				parts = append(parts, "("+materialized+")")
			}
		}
		return strings.Join(parts, " AND "), nil
	}
	return "", invalidArgument("sync where must be a string or an object")
}

// interpolateArgs replaces each placeholder with its argument quoted per
// Postgres rules. The result carries no placeholders: shape filters travel
// as plain strings.
func interpolateArgs(sql string, args []any) (string, error) {
	var b strings.Builder
	argIdx := 0
	for _, r := range sql {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		if argIdx >= len(args) {
			return "", unsupported("filter has more placeholders than arguments")
		}
		quoted, err := quoteLiteral(args[argIdx])
		if err != nil {
			return "", err
		}
		b.WriteString(quoted)
		argIdx++
	}
	return b.String(), nil
}

func quoteLiteral(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(value, "'", "''") + "'", nil
	case bool:
		return strconv.FormatBool(value), nil
	case int:
		return strconv.Itoa(value), nil
	case int64:
		return strconv.FormatInt(value, 10), nil
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64), nil
	case time.Time:
		return "'" + value.UTC().Format(time.RFC3339Nano) + "'", nil
	case []any:
		parts := make([]string, len(value))
		for i, item := range value {
			quoted, err := quoteLiteral(item)
			if err != nil {
				return "", err
			}
			parts[i] = quoted
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	}
	return "", unsupported("value of type %T cannot be interpolated into a filter", v)
}

// TrackedTables computes the tables a query over table with the given
// include tree touches: the root plus the transitive closure of included
// relations' tables. The result is sorted.
func (e *Engine) TrackedTables(table string, include map[string]any) ([]string, error) {
	seen := map[string]struct{}{}
	if err := e.trackTables(table, include, seen); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (e *Engine) trackTables(table string, include map[string]any, seen map[string]struct{}) error {
	// The include tree is finite, so cyclic schemas terminate naturally.
	seen[table] = struct{}{}

	tbl, err := e.reg.Table(table)
	if err != nil {
		return wrapSchemaErr(err)
	}
	for _, field := range sortedKeys(include) {
		arg := include[field]
		if on, ok := arg.(bool); ok && !on {
			continue
		}
		rel, ok := tbl.RelationForField(field)
		if !ok {
			return invalidArgument("unknown relation field %q in include on table %q", field, table)
		}
		var nested map[string]any
		if m, ok := arg.(map[string]any); ok {
			nested, _ = m["include"].(map[string]any)
		}
		if err := e.trackTables(rel.Table, nested, seen); err != nil {
			return err
		}
	}
	return nil
}

// ShapeHash is the content-addressed identity of a shape: a SHA-256 over a
// canonical serialization with NFC-normalized strings, so equivalent shapes
// subscribe once regardless of key order or Unicode representation.
func ShapeHash(shapes []Shape) string {
	h := sha256.New()
	for _, s := range shapes {
		writeCanonicalString(h, s.Table)
		include := make([]string, len(s.Include))
		copy(include, s.Include)
		sort.Strings(include)
		for _, field := range include {
			writeCanonicalString(h, field)
		}
		writeCanonicalString(h, s.Where)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeCanonicalString(h hash.Hash, s string) {
	normalized := norm.NFC.String(s)
	fmt.Fprintf(h, "%d:%s;", len(normalized), normalized)
}
