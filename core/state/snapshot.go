package state

import (
	"errors"

	"zenbeasts/storage"
)

// ErrNotSnapshot is returned by Commit on a manager that writes to the
// database directly.
var ErrNotSnapshot = errors.New("state: manager is not a snapshot")

// overlayDB buffers writes and deletes over a parent database. Reads fall
// through to the parent for untouched keys.
type overlayDB struct {
	parent  storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newOverlayDB(parent storage.Database) *overlayDB {
	return &overlayDB{
		parent:  parent,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *overlayDB) Put(key, value []byte) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	o.writes[string(key)] = buf
	delete(o.deletes, string(key))
	return nil
}

func (o *overlayDB) Get(key []byte) ([]byte, error) {
	if _, gone := o.deletes[string(key)]; gone {
		return nil, storage.ErrKeyNotFound
	}
	if value, ok := o.writes[string(key)]; ok {
		buf := make([]byte, len(value))
		copy(buf, value)
		return buf, nil
	}
	return o.parent.Get(key)
}

func (o *overlayDB) Has(key []byte) (bool, error) {
	if _, gone := o.deletes[string(key)]; gone {
		return false, nil
	}
	if _, ok := o.writes[string(key)]; ok {
		return true, nil
	}
	return o.parent.Has(key)
}

func (o *overlayDB) Delete(key []byte) error {
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

func (o *overlayDB) Close() {}

func (o *overlayDB) commit() error {
	for key, value := range o.writes {
		if err := o.parent.Put([]byte(key), value); err != nil {
			return err
		}
	}
	for key := range o.deletes {
		if err := o.parent.Delete([]byte(key)); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}

// Snapshot returns a manager whose writes stay buffered in memory until
// Commit. Discarding the snapshot discards the buffered writes.
func (m *Manager) Snapshot() *Manager {
	return &Manager{db: newOverlayDB(m.db)}
}

// Commit flushes a snapshot's buffered writes into the parent database.
func (m *Manager) Commit() error {
	overlay, ok := m.db.(*overlayDB)
	if !ok {
		return ErrNotSnapshot
	}
	return overlay.commit()
}
