package validation

import (
	"context"
	"fmt"
)

// LookupFunc reports whether any row of table has column equal to value.
//
// An empty table means "the table the caller is writing to"; the provider
// decides what that is. Store-backed rules (unique, exists) are the only
// callers.
type LookupFunc func(ctx context.Context, table, column string, value any) (bool, error)

// FileInfo is the metadata of one uploaded file.
type FileInfo struct {
	Name        string
	Size        int64
	ContentType string
}

// FileAccessor exposes uploaded-file metadata by field name.
type FileAccessor interface {
	File(field string) (FileInfo, bool)
}

// FileMap is a FileAccessor backed by a map.
type FileMap map[string]FileInfo

// File implements FileAccessor.
func (m FileMap) File(field string) (FileInfo, bool) {
	f, ok := m[field]
	return f, ok
}

type lookupKey struct {
	table  string
	column string
	value  string
}

// memoize wraps fn so that each (table, column, value) is looked up at most
// once. The returned function is scoped to one validation call.
func memoize(fn LookupFunc) LookupFunc {
	if fn == nil {
		return nil
	}
	seen := make(map[lookupKey]bool)
	return func(ctx context.Context, table, column string, value any) (bool, error) {
		key := lookupKey{table: table, column: column, value: fmt.Sprintf("%T:%v", value, value)}
		if found, ok := seen[key]; ok {
			return found, nil
		}
		found, err := fn(ctx, table, column, value)
		if err != nil {
			return false, err
		}
		seen[key] = found
		return found, nil
	}
}
