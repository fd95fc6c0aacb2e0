package validate

import (
	"time"

	"github.com/ebb-sync/ebb/internal/schema"
)

// Transformer applies per-field input conversions for one table so values
// reach the driver in the representation the dialect stores: booleans as
// integers, timestamps as UTC ISO strings.
type Transformer struct {
	Fields map[string]schema.Field
}

// TransformCreate converts the data values of a create input in place of a
// copy; the input map itself is not mutated.
func (t *Transformer) TransformCreate(input map[string]any) map[string]any {
	return t.convertKeys(input, "data")
}

// TransformCreateMany converts every object of the data list.
func (t *Transformer) TransformCreateMany(input map[string]any) map[string]any {
	out := shallowCopy(input)
	list, ok := out["data"].([]any)
	if !ok {
		return out
	}
	converted := make([]any, len(list))
	for i, item := range list {
		if m, ok := item.(map[string]any); ok {
			converted[i] = t.ConvertValues(m)
		} else {
			converted[i] = item
		}
	}
	out["data"] = converted
	return out
}

// TransformFindUnique converts the where values of a unique read.
func (t *Transformer) TransformFindUnique(input map[string]any) map[string]any {
	return t.convertKeys(input, "where")
}

// TransformFindNonUnique converts the where values of findFirst/findMany.
func (t *Transformer) TransformFindNonUnique(input map[string]any) map[string]any {
	return t.convertKeys(input, "where")
}

// TransformUpdate converts both data and where.
func (t *Transformer) TransformUpdate(input map[string]any) map[string]any {
	return t.convertKeys(input, "data", "where")
}

// TransformUpdateMany converts both data and where.
func (t *Transformer) TransformUpdateMany(input map[string]any) map[string]any {
	return t.convertKeys(input, "data", "where")
}

// TransformDelete converts the where values.
func (t *Transformer) TransformDelete(input map[string]any) map[string]any {
	return t.convertKeys(input, "where")
}

// TransformDeleteMany converts the where values.
func (t *Transformer) TransformDeleteMany(input map[string]any) map[string]any {
	return t.convertKeys(input, "where")
}

func (t *Transformer) convertKeys(input map[string]any, keys ...string) map[string]any {
	out := shallowCopy(input)
	for _, key := range keys {
		if m, ok := out[key].(map[string]any); ok {
			out[key] = t.ConvertValues(m)
		}
	}
	return out
}

// ConvertValues converts the scalar entries of a data/where object. Filter
// operator objects are converted at their leaves; relation payloads are left
// untouched (the planners transform them against the related table).
func (t *Transformer) ConvertValues(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		f, ok := t.Fields[key]
		if !ok {
			out[key] = value
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			ops := make(map[string]any, len(v))
			for op, arg := range v {
				if items, isList := arg.([]any); isList {
					list := make([]any, len(items))
					for i, item := range items {
						list[i] = convertLeaf(item, f.Type)
					}
					ops[op] = list
					continue
				}
				ops[op] = convertLeaf(arg, f.Type)
			}
			out[key] = ops
		case []any:
			list := make([]any, len(v))
			for i, item := range v {
				list[i] = convertLeaf(item, f.Type)
			}
			out[key] = list
		default:
			out[key] = convertLeaf(value, f.Type)
		}
	}
	return out
}

func convertLeaf(v any, ft schema.FieldType) any {
	switch ft {
	case schema.TypeBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1)
			}
			return int64(0)
		}
	case schema.TypeTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Format(time.RFC3339Nano)
		}
	}
	return v
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
