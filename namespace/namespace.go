// Package namespace implements versioned, hierarchical partitioning of
// a single ordered KV store into typed logical tables. Every key
// written through a Namespace is encoded as "{name}.v{version}:{prefix}{key}"
// so that many namespaces and subspaces can share one backing store
// without colliding, and so that a namespace's keys sort contiguously
// for prefix iteration.
package namespace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/tolelom/cardtable/storage"
)

// ErrNoSuchKey is returned by Get when the key is absent.
var ErrNoSuchKey = errors.New("namespace: no such key")

// metaName is reserved; Namespace rejects it to keep the meta-namespace
// (which records every other namespace ever created) from colliding
// with user namespaces, mirroring the reference's registerPrefix/
// statePrefixes bookkeeping.
const metaName = "__meta__"

// Codec serializes namespace values. The default is JSON, matching the
// encoding used throughout the reference codebase for persisted
// records.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Root owns the backing store and the meta-namespace that tracks every
// namespace opened against it.
type Root struct {
	db    storage.DB
	codec Codec

	mu   sync.Mutex
	meta *Namespace
}

// NewRoot opens a Root over db using the JSON codec.
func NewRoot(db storage.DB) *Root {
	r := &Root{db: db, codec: jsonCodec{}}
	r.meta = &Namespace{root: r, name: metaName, version: 0, codec: r.codec}
	return r
}

// Namespace opens (or reopens) a top-level namespace. Every distinct
// (name, version) pair opened through a Root is recorded in the
// meta-namespace so ListNamespaces can recover them later.
func (r *Root) Namespace(name string, version int) (*Namespace, error) {
	if name == metaName {
		return nil, fmt.Errorf("namespace: %q is reserved", metaName)
	}
	if strings.ContainsRune(name, ':') || strings.ContainsRune(name, 0) {
		return nil, fmt.Errorf("namespace: name %q must not contain ':' or NUL", name)
	}
	ns := &Namespace{root: r, name: name, version: version, codec: r.codec}

	r.mu.Lock()
	defer r.mu.Unlock()
	var rec nsRecord
	if err := r.meta.Get(name, &rec); err != nil && !errors.Is(err, ErrNoSuchKey) {
		return nil, err
	}
	rec = nsRecord{Name: name, Version: version}
	if err := r.meta.Put(name, rec); err != nil {
		return nil, fmt.Errorf("namespace: record %q in meta: %w", name, err)
	}
	return ns, nil
}

// nsRecord is the meta-namespace's record of a created namespace.
type nsRecord struct {
	Name    string
	Version int
}

// ListNamespaces returns the names of every namespace ever created
// against this Root.
func (r *Root) ListNamespaces() ([]string, error) {
	entries, err := r.meta.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, k := range entries {
		names = append(names, k)
	}
	return names, nil
}

// Namespace is a typed logical table backed by a shared KV store.
// Subspaces extend the prefix with a NUL separator, forming a tree of
// tables that all share the same (name, version) key space.
type Namespace struct {
	root    *Root
	name    string
	version int
	prefix  string // extra subspace prefix, NUL-separated segments
	codec   Codec
}

// Subspace returns a child Namespace whose keys are additionally
// scoped under extra, so that e.g. per-Scope or per-game sub-tables can
// share one namespace without manual key concatenation.
func (n *Namespace) Subspace(extra string) *Namespace {
	prefix := extra
	if n.prefix != "" {
		prefix = n.prefix + "\x00" + extra
	}
	return &Namespace{root: n.root, name: n.name, version: n.version, prefix: prefix, codec: n.codec}
}

func (n *Namespace) encodeKey(key string) []byte {
	var b strings.Builder
	b.WriteString(n.name)
	b.WriteString(".v")
	b.WriteString(strconv.Itoa(n.version))
	b.WriteByte(':')
	if n.prefix != "" {
		b.WriteString(n.prefix)
		b.WriteByte(0)
	}
	b.WriteString(key)
	return []byte(b.String())
}

// tablePrefix is the byte prefix shared by every key in this
// Namespace/Subspace, used for List/iteration.
func (n *Namespace) tablePrefix() []byte {
	var b strings.Builder
	b.WriteString(n.name)
	b.WriteString(".v")
	b.WriteString(strconv.Itoa(n.version))
	b.WriteByte(':')
	if n.prefix != "" {
		b.WriteString(n.prefix)
		b.WriteByte(0)
	}
	return []byte(b.String())
}

// Put serializes v with the namespace's codec and stores it under key.
func (n *Namespace) Put(key string, v any) error {
	data, err := n.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("namespace %s: marshal %q: %w", n.name, key, err)
	}
	if err := n.root.db.Set(n.encodeKey(key), data); err != nil {
		return fmt.Errorf("namespace %s: put %q: %w", n.name, key, err)
	}
	return nil
}

// Get deserializes the value stored at key into v. Returns
// ErrNoSuchKey if absent.
func (n *Namespace) Get(key string, v any) error {
	data, err := n.root.db.Get(n.encodeKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoSuchKey
	}
	if err != nil {
		return fmt.Errorf("namespace %s: get %q: %w", n.name, key, err)
	}
	return n.codec.Unmarshal(data, v)
}

// Has reports whether key exists in this namespace.
func (n *Namespace) Has(key string) bool {
	_, err := n.root.db.Get(n.encodeKey(key))
	return err == nil
}

// Delete removes key. Deleting an absent key is not an error.
func (n *Namespace) Delete(key string) error {
	if err := n.root.db.Delete(n.encodeKey(key)); err != nil {
		return fmt.Errorf("namespace %s: delete %q: %w", n.name, key, err)
	}
	return nil
}

// List returns every key currently stored in this namespace, in the
// underlying store's iteration order.
func (n *Namespace) List() ([]string, error) {
	prefix := n.tablePrefix()
	it := n.root.db.NewIterator(prefix)
	defer it.Release()

	var keys []string
	for it.Next() {
		k := string(it.Key())
		keys = append(keys, k[len(prefix):])
	}
	return keys, it.Error()
}

// ForEach decodes every value in the namespace into a fresh instance
// produced by newVal and passes it to fn, stopping early if fn returns
// an error.
func ForEach[T any](n *Namespace, newVal func() T, fn func(key string, val T) error) error {
	keys, err := n.List()
	if err != nil {
		return err
	}
	for _, k := range keys {
		v := newVal()
		if err := n.Get(k, v); err != nil {
			return err
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}
