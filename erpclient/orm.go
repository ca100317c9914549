package erpclient

import (
	"context"
	"fmt"
)

// Thin typed wrappers over execute_kw. They exist so resolver and executor
// code reads as intent rather than positional-argument plumbing.

func Search(ctx context.Context, c Caller, worker int, model string, domain []any, limit int) ([]int64, error) {
	kw := map[string]any{}
	if limit > 0 {
		kw["limit"] = limit
	}
	reply, err := c.Call(ctx, worker, model, "search", []any{domain}, kw)
	if err != nil {
		return nil, err
	}
	return Int64Slice(reply), nil
}

func SearchRead(ctx context.Context, c Caller, worker int, model string, domain []any, fields []string, limit int) ([]map[string]any, error) {
	kw := map[string]any{"fields": toAnySlice(fields)}
	if limit > 0 {
		kw["limit"] = limit
	}
	reply, err := c.Call(ctx, worker, model, "search_read", []any{domain}, kw)
	if err != nil {
		return nil, err
	}
	return MapSlice(reply), nil
}

func Read(ctx context.Context, c Caller, worker int, model string, ids []int64, fields []string) ([]map[string]any, error) {
	reply, err := c.Call(ctx, worker, model, "read", []any{toAnySliceInt(ids)}, map[string]any{"fields": toAnySlice(fields)})
	if err != nil {
		return nil, err
	}
	return MapSlice(reply), nil
}

func Create(ctx context.Context, c Caller, worker int, model string, values map[string]any) (int64, error) {
	reply, err := c.Call(ctx, worker, model, "create", []any{values}, nil)
	if err != nil {
		return 0, err
	}
	id := Int64(reply)
	if id <= 0 {
		return 0, fmt.Errorf("create on %s returned %v", model, reply)
	}
	return id, nil
}

func Write(ctx context.Context, c Caller, worker int, model string, ids []int64, values map[string]any) error {
	_, err := c.Call(ctx, worker, model, "write", []any{toAnySliceInt(ids), values}, nil)
	return err
}

// Domain builds one search criterion triple.
func Domain(field, op string, value any) []any {
	return []any{field, op, value}
}

// Int64 coerces the XML-RPC decoded value (int64, int or float64) to int64.
func Int64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// Float64 coerces the decoded value to float64.
func Float64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// Int64Slice unwraps a decoded id list.
func Int64Slice(v any) []int64 {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(list))
	for _, item := range list {
		if id := Int64(item); id > 0 {
			out = append(out, id)
		}
	}
	return out
}

// MapSlice unwraps a decoded record list.
func MapSlice(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// RelationID extracts the id out of a many2one value, which the server
// returns as [id, display_name] or false.
func RelationID(v any) int64 {
	pair, ok := v.([]any)
	if !ok || len(pair) == 0 {
		return 0
	}
	return Int64(pair[0])
}

// StringField extracts a string field, tolerating false for unset.
func StringField(v any) string {
	s, _ := v.(string)
	return s
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toAnySliceInt(in []int64) []any {
	out := make([]any, len(in))
	for i, n := range in {
		out[i] = n
	}
	return out
}
