// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package frame

// Header is an ordered collection of STOMP header entries. Duplicate keys
// are permitted; per protocol convention the first occurrence of a key is
// authoritative for lookups.
type Header struct {
	entries []string // flattened key/value pairs
}

// NewHeader builds a header set from alternating key/value strings. A
// trailing unpaired key is ignored.
func NewHeader(entries ...string) *Header {
	h := &Header{entries: make([]string, 0, len(entries))}
	for i := 0; i+1 < len(entries); i += 2 {
		h.entries = append(h.entries, entries[i], entries[i+1])
	}
	return h
}

// Len returns the number of header entries, duplicates included.
func (h *Header) Len() int {
	return len(h.entries) / 2
}

// GetAt returns the key and value of the i-th entry in order.
func (h *Header) GetAt(i int) (key, value string) {
	return h.entries[i*2], h.entries[i*2+1]
}

// Add appends an entry, keeping any earlier entries for the same key.
func (h *Header) Add(key, value string) {
	h.entries = append(h.entries, key, value)
}

// Set replaces the first entry for key, removing any later duplicates. If
// the key is absent the entry is appended.
func (h *Header) Set(key, value string) {
	h.Del(key)
	h.Add(key, value)
}

// Del removes every entry for key.
func (h *Header) Del(key string) {
	for i := 0; i < len(h.entries); i += 2 {
		if h.entries[i] == key {
			h.entries = append(h.entries[:i], h.entries[i+2:]...)
			i -= 2
		}
	}
}

// Get returns the value of the first entry for key, or the empty string.
func (h *Header) Get(key string) string {
	v, _ := h.Contains(key)
	return v
}

// Contains returns the value of the first entry for key and whether any
// entry for the key exists.
func (h *Header) Contains(key string) (string, bool) {
	for i := 0; i < len(h.entries); i += 2 {
		if h.entries[i] == key {
			return h.entries[i+1], true
		}
	}
	return "", false
}

// Clone returns a copy of the header set.
func (h *Header) Clone() *Header {
	entries := make([]string, len(h.entries))
	copy(entries, h.entries)
	return &Header{entries: entries}
}
