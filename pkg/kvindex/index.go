// Package kvindex implements the ordered, concurrent string key/value index
// at the core of the server: a binary search tree with a permanent sentinel
// root, descended hand-over-hand under per-node reader-writer locks so that
// concurrent readers and disjoint-path writers never serialize on a single
// global lock.
package kvindex

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultFieldLimit is the maximum length, in bytes, of a key or a value
// when no explicit limit is configured.
const DefaultFieldLimit = 256

// Errors returned by Index operations. They are sentinel values so callers
// can compare with errors.Is rather than matching response strings.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	ErrTooLong   = errors.New("too long")
)

// node is one entry in the tree. left and right are nil for a missing
// child. mu guards value, left, right, and key (key only changes via the
// Case-C overwrite in Remove).
type node struct {
	mu    sync.RWMutex
	key   string
	value string
	left  *node
	right *node
}

// Index is a concurrent ordered string-keyed store. The zero value is not
// usable; construct with New.
type Index struct {
	root       node // sentinel: root.key == "" and is never user-addressable
	fieldLimit int
}

// New returns an empty Index. A fieldLimit <= 0 selects DefaultFieldLimit.
func New(fieldLimit int) *Index {
	if fieldLimit <= 0 {
		fieldLimit = DefaultFieldLimit
	}
	return &Index{fieldLimit: fieldLimit}
}

// lockMode selects which flavor of sync.RWMutex call descend performs, so
// the same hand-over-hand walk serves both readers and writers.
type lockMode int

const (
	modeRead lockMode = iota
	modeWrite
)

func (m lockMode) lock(n *node) {
	if m == modeRead {
		n.mu.RLock()
	} else {
		n.mu.Lock()
	}
}

func (m lockMode) unlock(n *node) {
	if m == modeRead {
		n.mu.RUnlock()
	} else {
		n.mu.Unlock()
	}
}

// descend walks from parent (already locked by the caller in mode m) toward
// key, acquiring the same lock mode on each child before releasing the
// current node, so that no thread ever holds a lock on two unrelated
// subtrees and no observer can see a node detached from its parent.
//
// It returns with parent always locked. If the key is present, the matching
// node is also returned locked; the caller releases parent first if it does
// not need to mutate parent's child link, and always releases the matched
// node.
func descend(parent *node, key string, m lockMode) (matched, lockedParent *node) {
	for {
		var next *node
		if key < parent.key {
			next = parent.left
		} else {
			next = parent.right
		}
		if next == nil {
			return nil, parent
		}
		m.lock(next)
		if next.key == key {
			return next, parent
		}
		m.unlock(parent)
		parent = next
	}
}

// Lookup returns the value stored for key, or ok=false if key is absent.
func (idx *Index) Lookup(key string) (value string, ok bool) {
	idx.root.mu.RLock()
	target, parent := descend(&idx.root, key, modeRead)
	if target == nil {
		parent.mu.RUnlock()
		return "", false
	}
	value = target.value
	target.mu.RUnlock()
	parent.mu.RUnlock()
	return value, true
}

// Insert adds key/value if key is absent. It returns ErrTooLong if either
// field exceeds the configured field limit, ErrDuplicate if key is already
// present, or nil on success.
func (idx *Index) Insert(key, value string) error {
	if len(key) > idx.fieldLimit || len(value) > idx.fieldLimit {
		return ErrTooLong
	}
	idx.root.mu.Lock()
	target, parent := descend(&idx.root, key, modeWrite)
	if target != nil {
		target.mu.Unlock()
		parent.mu.Unlock()
		return ErrDuplicate
	}
	leaf := &node{key: key, value: value}
	attach(parent, key, leaf)
	parent.mu.Unlock()
	return nil
}

// attach links child onto parent's left or right side according to how key
// compares with parent's key.
func attach(parent *node, key string, child *node) {
	if key < parent.key {
		parent.left = child
	} else {
		parent.right = child
	}
}

// Remove deletes key if present. It returns ErrNotFound if key is absent.
func (idx *Index) Remove(key string) error {
	idx.root.mu.Lock()
	target, parent := descend(&idx.root, key, modeWrite)
	if target == nil {
		parent.mu.Unlock()
		return ErrNotFound
	}

	switch {
	case target.right == nil:
		// Case A: replace parent's link with target's left child.
		attach(parent, target.key, target.left)
		target.mu.Unlock()
		parent.mu.Unlock()

	case target.left == nil:
		// Case B: symmetric with target.right.
		attach(parent, target.key, target.right)
		target.mu.Unlock()
		parent.mu.Unlock()

	default:
		// Case C: both children present. Find the in-order successor by
		// descending into target.right always taking the left child,
		// unlocking each node as the descent passes through it. target
		// itself stays write-locked for the whole operation: that is what
		// makes it safe to later write through linkParent even once
		// linkParent's own lock has been released, since nothing can reach
		// any node in target's subtree without first locking target.
		succ := target.right
		succ.mu.Lock()
		linkParent := target
		linkOnLeft := false
		for succ.left != nil {
			next := succ.left
			next.mu.Lock()
			succ.mu.Unlock()
			linkParent = succ
			linkOnLeft = true
			succ = next
		}
		if linkOnLeft {
			linkParent.left = succ.right
		} else {
			linkParent.right = succ.right
		}
		// Overwrite target's key/value with byte-for-byte copies of the
		// successor's fields, then discard the successor.
		target.key = succ.key
		target.value = succ.value
		succ.mu.Unlock()
		target.mu.Unlock()
		parent.mu.Unlock()
	}
	return nil
}

// Snapshot writes a pre-order traversal of the tree to w: one line per
// node, indented by depth (one space per level), formatted "key value";
// the sentinel prints as "(root)" and a missing child as "(null)".
func (idx *Index) Snapshot(w io.Writer) error {
	return snapshotNode(&idx.root, 0, w, true)
}

func snapshotNode(n *node, depth int, w io.Writer, sentinel bool) error {
	if n == nil {
		_, err := fmt.Fprintf(w, "%s(null)\n", strings.Repeat(" ", depth))
		return err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	var err error
	if sentinel {
		_, err = fmt.Fprintf(w, "%s(root)\n", strings.Repeat(" ", depth))
	} else {
		_, err = fmt.Fprintf(w, "%s%s %s\n", strings.Repeat(" ", depth), n.key, n.value)
	}
	if err != nil {
		return err
	}
	if err := snapshotNode(n.left, depth+1, w, false); err != nil {
		return err
	}
	return snapshotNode(n.right, depth+1, w, false)
}

// Destroy releases every non-sentinel node. It is only safe to call once no
// session can still be descending the tree (i.e. after the shutdown barrier
// has fired); Destroy performs no synchronization of its own.
func (idx *Index) Destroy() {
	idx.root.left = nil
	idx.root.right = nil
}

// FieldLimit returns the maximum key/value length this index enforces.
func (idx *Index) FieldLimit() int {
	return idx.fieldLimit
}
