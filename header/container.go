/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package header implements HeadersContainer: a case-insensitive,
// multi-valued header map that preserves the casing of whichever call
// first wrote a given field name, with field-specific merge rules (notably
// Set-Cookie, which is never merged).
package header

import (
	"strings"
)

// SetCookie is the one field name that is always appended as a distinct
// list entry, never merged with an existing value.
const SetCookie = "Set-Cookie"

// Container is an ordered, case-insensitive multi-valued header map.
//
// Unlike net/http.Header, Container does not canonicalize key casing on
// storage: the first call that writes a field name fixes its casing for the
// lifetime of the container, and a lowercase index is kept alongside for
// case-insensitive lookups. This keeps round-trips faithful to whatever a
// client or upstream sent.
type Container struct {
	order []string
	store map[string][]string
	index map[string]string // lowercase -> canonical (as first written)
}

// New returns an empty Container.
func New() *Container {
	return &Container{
		store: make(map[string][]string),
		index: make(map[string]string),
	}
}

func (c *Container) canonicalFor(name string) (string, bool) {
	if c.index == nil {
		return "", false
	}
	k, ok := c.index[strings.ToLower(name)]
	return k, ok
}

// Get returns the stored value list for name (case-insensitive), or nil if
// the field is absent.
func (c *Container) Get(name string) []string {
	if canon, ok := c.canonicalFor(name); ok {
		return c.store[canon]
	}
	return nil
}

// GetFirst returns the first value for name, or "" if absent.
func (c *Container) GetFirst(name string) string {
	v := c.Get(name)
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Has reports whether name is present, case-insensitively.
func (c *Container) Has(name string) bool {
	_, ok := c.canonicalFor(name)
	return ok
}

// Set replaces the entire value list for name, fixing its casing if this is
// the first time name is written.
func (c *Container) Set(name string, values []string) {
	canon, existed := c.canonicalFor(name)
	if !existed {
		canon = name
		c.index[strings.ToLower(name)] = canon
		c.order = append(c.order, canon)
	}
	cp := make([]string, len(values))
	copy(cp, values)
	c.store[canon] = cp
}

// Append adds values to name following the field-specific merge rule of
// spec.md §3: Set-Cookie values are always appended as distinct list
// entries; for every other field, if a value already exists its first
// element becomes "old, v1, v2, ..."; otherwise the values are set as-is.
func (c *Container) Append(name string, values ...string) {
	if len(values) == 0 {
		return
	}

	canon, existed := c.canonicalFor(name)
	if !existed {
		canon = name
		c.index[strings.ToLower(name)] = canon
		c.order = append(c.order, canon)
		c.store[canon] = append([]string{}, values...)
		return
	}

	if strings.EqualFold(canon, SetCookie) {
		c.store[canon] = append(c.store[canon], values...)
		return
	}

	cur := c.store[canon]
	if len(cur) == 0 {
		c.store[canon] = append([]string{}, values...)
		return
	}

	merged := make([]string, 0, len(values)+1)
	merged = append(merged, cur[0])
	merged = append(merged, values...)
	cur[0] = strings.Join(merged, ", ")
	c.store[canon] = cur
}

// Remove drops name from both the store and the lowercase index.
func (c *Container) Remove(name string) {
	canon, ok := c.canonicalFor(name)
	if !ok {
		return
	}
	delete(c.store, canon)
	delete(c.index, strings.ToLower(name))
	for i, k := range c.order {
		if k == canon {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Entry is one (canonical name, values) pair, as yielded by Each in
// insertion order.
type Entry struct {
	Name   string
	Values []string
}

// Each iterates entries in insertion order (the order canonical names were
// first written).
func (c *Container) Each(fn func(name string, values []string) bool) {
	for _, name := range c.order {
		if !fn(name, c.store[name]) {
			return
		}
	}
}

// Entries returns a snapshot of all entries in insertion order.
func (c *Container) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, Entry{Name: name, Values: c.store[name]})
	}
	return out
}

// Clone returns a deep copy.
func (c *Container) Clone() *Container {
	n := New()
	for _, e := range c.Entries() {
		n.Set(e.Name, e.Values)
	}
	return n
}

// Len returns the number of distinct field names stored.
func (c *Container) Len() int {
	return len(c.order)
}

// WriteTo serializes every entry as "Name: value\r\n" lines, one per value,
// in insertion order. Unlike badu-http's hdr.WriteSubset (which sorts
// alphabetically the way net/http does for deterministic diffing), the wire
// framing in spec.md §4.7 requires per-field insertion order to be
// preserved, so entries are emitted exactly as Each would yield them.
func (c *Container) WriteTo(w writer) error {
	var err error
	c.Each(func(name string, values []string) bool {
		for _, v := range values {
			if _, err = w.WriteString(name); err != nil {
				return false
			}
			if _, err = w.WriteString(": "); err != nil {
				return false
			}
			if _, err = w.WriteString(v); err != nil {
				return false
			}
			if _, err = w.WriteString("\r\n"); err != nil {
				return false
			}
		}
		return true
	})
	return err
}

type writer interface {
	WriteString(s string) (int, error)
}
