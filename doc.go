// Package valuetable provides a disk-backed, append-and-reuse slot store
// for variable-length values keyed by fixed-length fingerprints.
//
// A value table is built over a single file divided into fixed-size
// entries ("slots"). Slot 0 holds a 16-byte header (last_removed, filled).
// Every other slot holds one of three entry kinds: a live single entry
// (the whole value fits in one slot), a live multipart entry (part of a
// chain of slots), or a tombstone (a free slot threaded into a LIFO
// free-list headed by last_removed).
//
// Mutations are staged through the Writer/Reader/Overlays interfaces this
// package consumes — see package wal for a minimal, self-contained
// implementation of those interfaces — and are only applied to the
// backing file when EnactPlan/CompletePlan are called, matching a
// write-ahead-log's plan/enact split. Ordering, grouping mutations across
// multiple tables, and the key-to-slot index that calls into this package
// are the responsibility of the surrounding database; this package only
// ever works in raw slot indices.
package valuetable
