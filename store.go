package tagstore

import (
	"sync"
	"sync/atomic"

	"github.com/corvidtag/tagstore/nbt"
)

// ContentSeparator discovers the (Tag, value) pairs encoded in a
// compound and installs each into s, typically via repeated calls to
// SetTag with whatever concrete Tag[T] values the caller's own tag
// registry resolves the compound's keys to. Store has no way to invent
// a Tag[T] from a bare string key on its own — that mapping is the
// caller's schema — so UpdateContent and FromCompound both delegate to
// whatever ContentSeparator a Store was constructed with.
type ContentSeparator func(s *Store, compound nbt.CompoundTag)

// Store is a hierarchical, concurrently readable attribute container:
// the public surface over a tree of nodes and entries. Reads (GetTag,
// AsCompound via a cache hit) take no lock. Writes (SetTag, UpdateTag,
// and their variants, ClearTags, UpdateContent) serialize on mu, the
// single-writer discipline every node and entry beneath Store assumes.
type Store struct {
	root      *node
	mu        sync.Mutex
	separator ContentSeparator
	readOnly  bool

	// readableCopy memoizes the snapshot ReadableCopy hands out, per
	// spec §4.3 ("lazily cached until next write") and
	// TagHandlerImpl's own `volatile Node copy` field. Every write path
	// clears it; the next ReadableCopy call recomputes under mu.
	readableCopy atomic.Pointer[node]
}

// StoreOption configures a Store at construction.
type StoreOption func(*Store)

// WithContentSeparator attaches the collaborator UpdateContent and
// FromCompound need to turn a raw compound back into typed tags.
// A Store constructed without one panics if either is called.
func WithContentSeparator(sep ContentSeparator) StoreOption {
	return func(s *Store) { s.separator = sep }
}

// NewStore returns an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{root: newNode(nil)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromCompound rebuilds a Store from a previously serialized compound,
// via the ContentSeparator supplied in opts.
func FromCompound(compound nbt.CompoundTag, opts ...StoreOption) *Store {
	s := NewStore(opts...)
	if s.separator == nil {
		panic("tagstore: FromCompound requires WithContentSeparator") // UsageError
	}
	s.separator(s, compound)
	return s
}

// traverseOrCreatePath walks tag path segments from the root, creating
// an intermediate child Node for any segment not yet present. Callers
// must hold s.mu.
//
// A segment's slot can already be occupied by a non-path leaf entry —
// a value written before any tag addressed beneath it existed, so it
// was stored flat instead of as a child Node. Displacing that entry
// with a fresh, empty child would silently drop its data, so if its
// serialized form is itself a compound, the new child is seeded from
// it: rebuilt into typed entries via the Store's ContentSeparator when
// one is configured, or cached as a raw compound when none is.
func (s *Store) traverseOrCreatePath(path []PathEntry) *node {
	n := s.root
	for _, seg := range path {
		e := n.entries.get(seg.Index)
		var child *node
		if e != nil {
			child, _ = e.getValue().(*node)
		}
		if child == nil {
			child = newNode(n)
			if e != nil {
				s.seedDisplacedEntry(child, e)
			}
			n.entries.put(seg.Index, newEntry(pathEntryTag(seg.Name, seg.Index), child))
		}
		n = child
	}
	return n
}

// seedDisplacedEntry populates a freshly created child with whatever
// compound-shaped content a leaf entry it is displacing had encoded.
func (s *Store) seedDisplacedEntry(child *node, displaced *entry) {
	ct, ok := displaced.updatedNbt().(nbt.CompoundTag)
	if !ok {
		return
	}
	if s.separator == nil {
		child.compoundCache.Store(&compoundSlot{c: ct})
		return
	}
	tmp := &Store{root: newNode(nil), separator: s.separator}
	s.separator(tmp, ct)
	child.updateContent(tmp.root, ct)
}

// traversePath walks tag path segments from the root without creating
// anything, returning nil if any segment is missing. Safe to call
// without holding s.mu.
func traversePath(root *node, path []PathEntry) *node {
	n := root
	for _, seg := range path {
		e := n.entries.get(seg.Index)
		if e == nil {
			return nil
		}
		child, ok := e.getValue().(*node)
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// getTagUnlocked reads tag's value. A view tag (see Tag.IsView)
// addresses the whole Node reached by its path rather than one entry
// within it: its value is reconstructed from that Node's entire
// compound, not from a stored entry, so a view read stays lock-free
// the same way any other read does.
func getTagUnlocked[T any](s *Store, tag Tag[T]) T {
	n := traversePath(s.root, tag.Path)
	if n == nil {
		return tag.defaultValue()
	}

	if tag.IsView {
		return tag.Ser.Read(n.compound())
	}

	e := n.entries.get(tag.Index)
	if e == nil {
		return tag.defaultValue()
	}
	v, ok := e.getValue().(T)
	if !ok {
		return tag.defaultValue()
	}
	return v
}

// setTagViewLocked installs value as tag's entire addressed Node,
// replacing every entry that Node held rather than storing a single
// keyed entry — the "atomic whole sub-compound write" half of the
// view tag idiom (see Tag.IsView). Callers must hold s.mu.
func setTagViewLocked[T any](s *Store, tag Tag[T], value *T) {
	n := s.traverseOrCreatePath(tag.Path)

	if value == nil {
		n.entries.updateContent(newHashIntMap[*entry]())
		n.compoundCache.Store(&compoundSlot{c: nbt.EmptyCompound()})
		n.invalidateAbove()
		return
	}

	written := tag.Ser.Write(*value)
	compound, ok := written.(nbt.CompoundTag)
	if !ok {
		panic("tagstore: view tag serializer did not produce a compound") // UsageError
	}

	if s.separator == nil {
		n.entries.updateContent(newHashIntMap[*entry]())
		n.compoundCache.Store(&compoundSlot{c: compound})
		n.invalidateAbove()
		return
	}

	tmp := &Store{root: newNode(nil), separator: s.separator}
	s.separator(tmp, compound)
	n.updateContent(tmp.root, compound)
	n.invalidateAbove()
}

// invalidateReadableCopy drops the memoized ReadableCopy snapshot, if
// any. Called from every write path, mirroring how the original's
// Node.invalidate() walk reaches back to null TagHandlerImpl.this.copy.
func (s *Store) invalidateReadableCopy() {
	s.readableCopy.Store(nil)
}

func setTagLocked[T any](s *Store, tag Tag[T], value *T) {
	if s.readOnly {
		panic("tagstore: cannot write through a read-only Store (ReadableCopy)") // UsageError
	}
	defer s.invalidateReadableCopy()

	if tag.IsView {
		setTagViewLocked(s, tag, value)
		return
	}

	if value == nil {
		n := traversePath(s.root, tag.Path)
		if n == nil {
			return
		}
		if n.entries.get(tag.Index) == nil {
			return
		}
		n.entries.remove(tag.Index)
		n.invalidate()
		return
	}

	n := s.traverseOrCreatePath(tag.Path)
	erased := tagAsErased(tag)
	existing := n.entries.get(tag.Index)
	if existing != nil && existing.tag.shareValue(erased) {
		existing.updateValue(erased.copyAny(*value))
	} else {
		n.entries.put(tag.Index, newEntry(erased, erased.copyAny(*value)))
	}
	n.invalidate()
}

// GetTag returns the current value of tag, or tag's default if absent
// or if the path leading to it doesn't exist. Lock-free.
func GetTag[T any](s *Store, tag Tag[T]) T {
	return getTagUnlocked(s, tag)
}

// SetTag installs value at tag, creating any intermediate path nodes
// that don't yet exist. A nil value removes the tag. If an entry
// already occupies tag's slot and shares value with tag (same
// allocator index), it is updated in place via a lock-free
// entry.updateValue — the leaf-write hot path spec §4.3 calls out
// explicitly, mirrored from TagHandlerImpl's unsynchronized fast
// branch: the mutex is only taken for a miss, a non-sharing entry, a
// path segment that still needs creating, a removal, or a view write.
func SetTag[T any](s *Store, tag Tag[T], value *T) {
	if value != nil && !s.readOnly && !tag.IsView {
		if n := traversePath(s.root, tag.Path); n != nil {
			if existing := n.entries.get(tag.Index); existing != nil && existing.tag.shareValue(tagAsErased(tag)) {
				existing.updateValue(existing.tag.copyAny(*value))
				n.invalidate()
				s.invalidateReadableCopy()
				return
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	setTagLocked(s, tag, value)
}

// UpdateTag atomically replaces tag's value with fn applied to its
// current value. fn must not call back into this Store: Store's write
// lock is not reentrant, and a reentrant UpdateTag/SetTag call from
// within fn deadlocks rather than silently re-entering, unlike the
// original Java implementation's reentrant lock.
func UpdateTag[T any](s *Store, tag Tag[T], fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := fn(getTagUnlocked(s, tag))
	setTagLocked(s, tag, &updated)
}

// GetAndSetTag sets tag to value and returns the value it held before.
func GetAndSetTag[T any](s *Store, tag Tag[T], value T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := getTagUnlocked(s, tag)
	setTagLocked(s, tag, &value)
	return old
}

// UpdateAndGetTag is UpdateTag, returning the value after the update.
func UpdateAndGetTag[T any](s *Store, tag Tag[T], fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := fn(getTagUnlocked(s, tag))
	setTagLocked(s, tag, &updated)
	return updated
}

// GetAndUpdateTag is UpdateTag, returning the value from before the
// update.
func GetAndUpdateTag[T any](s *Store, tag Tag[T], fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := getTagUnlocked(s, tag)
	updated := fn(old)
	setTagLocked(s, tag, &updated)
	return old
}

// AsCompound returns this Store's current contents as a single
// immutable nbt.CompoundTag, memoized per the Node compound cache.
func (s *Store) AsCompound() nbt.CompoundTag {
	return s.root.compound()
}

// ReadableCopy returns a read-only handle over a point-in-time snapshot
// of this Store's contents — cheap enough to hand to an event handler,
// per spec §4.3. The snapshot is computed lazily on first call and
// memoized until the next write, mirroring TagHandlerImpl's cached
// `copy` field: writes made to the original after ReadableCopy returns
// are never observed through the handle, whether they land before or
// after the snapshot is actually materialized.
func (s *Store) ReadableCopy() *Store {
	if cached := s.readableCopy.Load(); cached != nil {
		return &Store{root: cached, separator: s.separator, readOnly: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached := s.readableCopy.Load(); cached != nil {
		return &Store{root: cached, separator: s.separator, readOnly: true}
	}
	root := s.root.copyNode(nil)
	if root == nil {
		root = newNode(nil)
	}
	s.readableCopy.Store(root)
	return &Store{root: root, separator: s.separator, readOnly: true}
}

// Copy returns a deep, independent snapshot: subsequent writes to
// either Store are invisible to the other.
func (s *Store) Copy() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := s.root.copyNode(nil)
	if root == nil {
		root = newNode(nil)
	}
	return &Store{root: root, separator: s.separator}
}

// UpdateContent replaces this Store's entire contents with whatever
// its ContentSeparator resolves compound to.
func (s *Store) UpdateContent(compound nbt.CompoundTag) {
	if s.separator == nil {
		panic("tagstore: UpdateContent requires WithContentSeparator") // UsageError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		panic("tagstore: cannot write through a read-only Store (ReadableCopy)")
	}
	tmp := &Store{root: newNode(nil), separator: s.separator}
	s.separator(tmp, compound)
	s.root.updateContent(tmp.root, compound)
	s.invalidateReadableCopy()
}

// ClearTags removes every tag from this Store.
func (s *Store) ClearTags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readOnly {
		panic("tagstore: cannot write through a read-only Store (ReadableCopy)")
	}
	s.root.entries.updateContent(newHashIntMap[*entry]())
	s.root.compoundCache.Store(&compoundSlot{c: nbt.EmptyCompound()})
	s.invalidateReadableCopy()
}
