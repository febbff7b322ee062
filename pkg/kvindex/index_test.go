package kvindex

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupInsertRemove(t *testing.T) {
	idx := New(0)

	if err := idx.Insert("foo", "bar"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if v, ok := idx.Lookup("foo"); !ok || v != "bar" {
		t.Fatalf("Lookup = %q, %v; want bar, true", v, ok)
	}
	if err := idx.Remove("foo"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := idx.Lookup("foo"); ok {
		t.Fatalf("Lookup after Remove found a value")
	}
}

func TestInsertDuplicate(t *testing.T) {
	idx := New(0)
	require.NoError(t, idx.Insert("k1", "v1"))
	require.ErrorIs(t, idx.Insert("k1", "v2"), ErrDuplicate)
	v, ok := idx.Lookup("k1")
	require.True(t, ok)
	require.Equal(t, "v1", v)
}

func TestRemoveNotFound(t *testing.T) {
	idx := New(0)
	require.ErrorIs(t, idx.Remove("missing"), ErrNotFound)
}

func TestInsertTooLong(t *testing.T) {
	idx := New(4)
	require.ErrorIs(t, idx.Insert("toolong", "v"), ErrTooLong)
	require.ErrorIs(t, idx.Insert("k", "toolong"), ErrTooLong)
}

// TestSnapshotScenario reproduces spec.md §8 scenario 1: insert a, c, b in
// order and check the exact pre-order snapshot text.
func TestSnapshotScenario(t *testing.T) {
	idx := New(0)
	for _, k := range []string{"a", "c", "b"} {
		require.NoError(t, idx.Insert(k, ""))
	}

	var buf bytes.Buffer
	require.NoError(t, idx.Snapshot(&buf))

	want := strings.Join([]string{
		"(root)",
		" (null)",
		" a ",
		"  (null)",
		"  c ",
		"   b ",
		"    (null)",
		"    (null)",
		"   (null)",
		"",
	}, "\n")
	require.Equal(t, want, buf.String())
}

// TestCaseCDelete reproduces spec.md §8 scenario 4: deleting a two-child
// node promotes its in-order successor into its place.
func TestCaseCDelete(t *testing.T) {
	idx := New(0)
	for _, k := range []string{"m", "g", "t", "a", "j", "p", "z"} {
		require.NoError(t, idx.Insert(k, k))
	}
	require.NoError(t, idx.Remove("m"))

	var buf bytes.Buffer
	require.NoError(t, idx.Snapshot(&buf))
	require.Contains(t, buf.String(), "p p")
	require.NotContains(t, buf.String(), "m m")

	inorder := collectInorder(t, idx)
	require.Equal(t, []string{"a", "g", "j", "p", "t", "z"}, inorder)
}

func collectInorder(t *testing.T, idx *Index) []string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, idx.Snapshot(&buf))

	// The snapshot is a pre-order dump that prints every missing child as
	// "(null)", so the in-order sequence can be rebuilt from the lines alone.
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	var keys []string
	pos := 0
	var walk func()
	walk = func() {
		trimmed := strings.TrimSpace(lines[pos])
		pos++
		if trimmed == "(null)" {
			return
		}
		walk() // left subtree
		if trimmed != "(root)" {
			keys = append(keys, strings.Fields(trimmed)[0])
		}
		walk() // right subtree
	}
	walk()
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	require.Equal(t, sorted, keys, "in-order keys rebuilt from the snapshot are not sorted, so the tree is not a valid BST")
	return keys
}

// TestConcurrentDisjointInsertLookup exercises spec.md §8 scenario 5: two
// goroutines insert and look up disjoint key ranges concurrently.
func TestConcurrentDisjointInsertLookup(t *testing.T) {
	idx := New(0)
	const n = 2000
	var wg sync.WaitGroup

	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				key := fmt.Sprintf("g%d-%05d", g, i)
				require.NoError(t, idx.Insert(key, key))
			}
		}(g)
	}
	wg.Wait()

	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				key := fmt.Sprintf("g%d-%05d", g, i)
				v, ok := idx.Lookup(key)
				require.True(t, ok)
				require.Equal(t, key, v)
			}
		}(g)
	}
	wg.Wait()
}

func TestConcurrentMixedOpsLeavesValidBST(t *testing.T) {
	idx := New(0)
	const perWorker = 500
	var wg sync.WaitGroup

	inserted := make([][]string, 4)
	var mu sync.Mutex
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var keys []string
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-%04d", w, i)
				if err := idx.Insert(key, key); err == nil {
					keys = append(keys, key)
				}
				if i%7 == 0 {
					_, _ = idx.Lookup(key)
				}
			}
			// Remove every third key we inserted.
			var kept []string
			for i, key := range keys {
				if i%3 == 0 {
					require.NoError(t, idx.Remove(key))
					continue
				}
				kept = append(kept, key)
			}
			mu.Lock()
			inserted[w] = kept
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	var want []string
	for _, keys := range inserted {
		want = append(want, keys...)
	}
	sort.Strings(want)

	got := collectInorder(t, idx)
	require.Equal(t, want, got)
}
