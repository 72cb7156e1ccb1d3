package knowledge

import "strings"

// RecordID identifies a record inside a collection. Keys are stored
// bare; the collection name never appears inside the key column.
type RecordID struct {
	Collection string
	Key        string
}

// ParseRecordID builds a RecordID from a raw identifier. Upstream data
// sometimes carries keys prefixed with a collection name ("knowledge:p1"
// or even "a:b:p1"); only the last segment is the key.
func ParseRecordID(collection, raw string) RecordID {
	key := raw
	if i := strings.LastIndexByte(raw, ':'); i >= 0 {
		key = raw[i+1:]
	}
	return RecordID{Collection: collection, Key: key}
}

// String renders the canonical collection:key form.
func (r RecordID) String() string {
	return r.Collection + ":" + r.Key
}
