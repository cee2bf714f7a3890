package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"lukechampine.com/blake3"
)

var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")
	headKey       = []byte("head")

	// ErrChainBroken is returned by Verify when the stored chain does not
	// recompute.
	ErrChainBroken = errors.New("journal: hash chain broken")
)

// MaxReadLimit caps one cursor read.
const MaxReadLimit = 500

// Entry is one journaled event: the emitted payload plus its position in the
// hash chain. Hash covers the sequence, type, sorted attributes, and the
// previous entry's hash, so any rewrite of history breaks every later entry.
type Entry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	PrevHash   []byte            `json:"prevHash,omitempty"`
	Hash       []byte            `json:"hash"`
}

type head struct {
	Sequence uint64 `json:"sequence"`
	Hash     []byte `json:"hash"`
}

// Store is an append-only, hash-chained event journal backed by bbolt.
// Appends are serialized; reads run concurrently. The engines never read
// their own journal; it exists for stream consumers and audits.
type Store struct {
	db *bolt.DB

	mu       sync.Mutex
	headSeq  uint64
	headHash []byte

	subMu   sync.Mutex
	subs    map[uint64]chan Entry
	nextSub uint64
}

// Open initialises (and migrates) the journal at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, subs: make(map[uint64]chan Entry)}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		data := tx.Bucket(bucketMeta).Get(headKey)
		if len(data) == 0 {
			return nil
		}
		var h head
		if err := json.Unmarshal(data, &h); err != nil {
			return fmt.Errorf("journal: decode head: %w", err)
		}
		store.headSeq = h.Sequence
		store.headHash = append([]byte(nil), h.Hash...)
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database. Live subscriptions should be
// cancelled first.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append journals one event and returns the stored entry.
func (s *Store) Append(eventType string, attrs map[string]string) (Entry, error) {
	if eventType == "" {
		return Entry{}, errors.New("journal: empty event type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		Sequence:   s.headSeq + 1,
		Type:       eventType,
		Attributes: copyAttrs(attrs),
		PrevHash:   append([]byte(nil), s.headHash...),
	}
	entry.Hash = canonicalHash(entry.Sequence, entry.Type, entry.Attributes, entry.PrevHash)

	encodedEntry, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encode entry: %w", err)
	}
	encodedHead, err := json.Marshal(head{Sequence: entry.Sequence, Hash: entry.Hash})
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encode head: %w", err)
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], entry.Sequence)
		if err := tx.Bucket(bucketEntries).Put(key[:], encodedEntry); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(headKey, encodedHead)
	}); err != nil {
		return Entry{}, err
	}

	s.headSeq = entry.Sequence
	s.headHash = entry.Hash
	s.notify(entry)
	return entry, nil
}

// Head returns the latest sequence and its hash.
func (s *Store) Head() (uint64, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headSeq, append([]byte(nil), s.headHash...)
}

// Read returns up to limit entries starting at sequence from, inclusive.
// A zero from starts at the first entry; limit outside (0, MaxReadLimit]
// is capped.
func (s *Store) Read(from uint64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > MaxReadLimit {
		limit = MaxReadLimit
	}
	if from == 0 {
		from = 1
	}
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		var seek [8]byte
		binary.BigEndian.PutUint64(seek[:], from)
		for k, v := c.Seek(seek[:]); k != nil && len(out) < limit; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("journal: decode entry: %w", err)
			}
			out = append(out, entry)
		}
		return nil
	})
	return out, err
}

// Verify walks the whole chain and recomputes every link.
func (s *Store) Verify() error {
	var prev []byte
	var expected uint64
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			expected++
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("journal: decode entry: %w", err)
			}
			if entry.Sequence != expected {
				return fmt.Errorf("%w: sequence %d where %d expected", ErrChainBroken, entry.Sequence, expected)
			}
			if !bytes.Equal(entry.PrevHash, prev) {
				return fmt.Errorf("%w: entry %d previous-hash mismatch", ErrChainBroken, entry.Sequence)
			}
			if want := canonicalHash(entry.Sequence, entry.Type, entry.Attributes, entry.PrevHash); !bytes.Equal(entry.Hash, want) {
				return fmt.Errorf("%w: entry %d hash mismatch", ErrChainBroken, entry.Sequence)
			}
			prev = entry.Hash
		}
		return nil
	})
}

// Subscribe registers a live entry feed. A slow consumer misses entries once
// its buffer fills and should re-sync with Read; the returned cancel closes
// the feed.
func (s *Store) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Entry, buffer)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify(entry Entry) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

func copyAttrs(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// canonicalHash folds the entry into a length-delimited buffer with sorted
// attribute keys, then hashes it with BLAKE3.
func canonicalHash(sequence uint64, eventType string, attrs map[string]string, prev []byte) []byte {
	buf := bytes.NewBuffer(nil)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], sequence)
	buf.Write(seq[:])
	writeDelimited(buf, []byte(eventType))

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(keys)))
	buf.Write(count[:])
	for _, k := range keys {
		writeDelimited(buf, []byte(k))
		writeDelimited(buf, []byte(attrs[k]))
	}
	writeDelimited(buf, prev)

	sum := blake3.Sum256(buf.Bytes())
	return sum[:]
}

func writeDelimited(buf *bytes.Buffer, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	buf.Write(length[:])
	buf.Write(data)
}
