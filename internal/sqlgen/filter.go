package sqlgen

import (
	"fmt"
	"sort"
	"strings"
)

// MakeFilter compiles one where entry into SQL fragments.
//
// A scalar value compiles to an equality test (nil to IS NULL). A map value
// is an operator object; each operator contributes one fragment:
//
//	equals, not, in, notIn, lt, lte, gt, gte, startsWith, endsWith, contains
//
// aliasPrefix qualifies the column ("p" → "p.authorId"); the empty prefix
// leaves the column bare.
func MakeFilter(value any, key, aliasPrefix string) ([]Fragment, error) {
	col := key
	if aliasPrefix != "" {
		col = aliasPrefix + "." + key
	}

	ops, ok := value.(map[string]any)
	if !ok {
		if value == nil {
			return []Fragment{{SQL: col + " IS NULL"}}, nil
		}
		return []Fragment{{SQL: col + " = ?", Args: []any{value}}}, nil
	}

	frags := make([]Fragment, 0, len(ops))
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		arg := ops[name]
		switch name {
		case "equals":
			if arg == nil {
				frags = append(frags, Fragment{SQL: col + " IS NULL"})
			} else {
				frags = append(frags, Fragment{SQL: col + " = ?", Args: []any{arg}})
			}
		case "not":
			if arg == nil {
				frags = append(frags, Fragment{SQL: col + " IS NOT NULL"})
			} else {
				frags = append(frags, Fragment{SQL: col + " != ?", Args: []any{arg}})
			}
		case "in":
			f, err := inFilter(col, arg, false)
			if err != nil {
				return nil, err
			}
			frags = append(frags, f)
		case "notIn":
			f, err := inFilter(col, arg, true)
			if err != nil {
				return nil, err
			}
			frags = append(frags, f)
		case "lt":
			frags = append(frags, Fragment{SQL: col + " < ?", Args: []any{arg}})
		case "lte":
			frags = append(frags, Fragment{SQL: col + " <= ?", Args: []any{arg}})
		case "gt":
			frags = append(frags, Fragment{SQL: col + " > ?", Args: []any{arg}})
		case "gte":
			frags = append(frags, Fragment{SQL: col + " >= ?", Args: []any{arg}})
		case "startsWith":
			frags = append(frags, likeFilter(col, fmt.Sprintf("%v%%", arg)))
		case "endsWith":
			frags = append(frags, likeFilter(col, fmt.Sprintf("%%%v", arg)))
		case "contains":
			frags = append(frags, likeFilter(col, fmt.Sprintf("%%%v%%", arg)))
		default:
			return nil, fmt.Errorf("unknown filter operator %q on %q", name, key)
		}
	}

	return frags, nil
}

// InFilter builds the membership fragment used to restrict a nested read to
// the parent rows' key values.
func InFilter(col string, values []any) Fragment {
	f, _ := inFilter(col, values, false)
	return f
}

func inFilter(col string, arg any, negate bool) (Fragment, error) {
	values, ok := asSlice(arg)
	if !ok {
		return Fragment{}, fmt.Errorf("filter %q requires a list, got %T", col, arg)
	}

	op := "IN"
	if negate {
		op = "NOT IN"
	}
	if len(values) == 0 {
		// x IN () is a syntax error in SQLite.
		if negate {
			return Fragment{SQL: "1 = 1"}, nil
		}
		return Fragment{SQL: "1 = 0"}, nil
	}

	holes := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return Fragment{
		SQL:  fmt.Sprintf("%s %s (%s)", col, op, holes),
		Args: values,
	}, nil
}

func likeFilter(col, pattern string) Fragment {
	return Fragment{SQL: col + " LIKE ?", Args: []any{pattern}}
}

func asSlice(v any) ([]any, bool) {
	switch vs := v.(type) {
	case []any:
		return vs, true
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(vs))
		for i, n := range vs {
			out[i] = n
		}
		return out, true
	case []int:
		out := make([]any, len(vs))
		for i, n := range vs {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}
