package digest

import (
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// statKey is the memoization key for a file digest: (path, ctime, mtime,
// size). A symlink and its target share a memo entry whenever their stat
// results coincide, since the key carries no identity beyond the tuple
// itself.
type statKey struct {
	path  string
	ctime int64
	mtime int64
	size  int64
}

// Memo is an in-process, size-bounded cache of file digests keyed by stat
// tuple. Missing files never enter the memo: a file that appears later must
// be re-stat'd and re-hashed, which is correct since its tuple couldn't have
// been known while it was absent.
type Memo struct {
	cache *lru.Cache[statKey, string]
}

// DefaultMemoSize bounds the number of distinct stat tuples a Memo retains.
const DefaultMemoSize = 8192

// NewMemo creates a Memo holding up to size entries. size <= 0 uses
// DefaultMemoSize.
func NewMemo(size int) *Memo {
	if size <= 0 {
		size = DefaultMemoSize
	}
	c, err := lru.New[statKey, string](size)
	if err != nil {
		// Only returned for size <= 0, which we've already excluded.
		panic(err)
	}
	return &Memo{cache: c}
}

// FileDigest returns the memoized digest for path, computing and storing it
// on a miss or a stat-tuple change. Behaves like the package-level
// FileDigest otherwise.
func (m *Memo) FileDigest(path string) (string, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}

	key := statKey{
		path:  path,
		ctime: ctimeNanos(info),
		mtime: info.ModTime().UnixNano(),
		size:  info.Size(),
	}

	if d, ok := m.cache.Get(key); ok {
		return d, true, nil
	}

	d, ok, err := FileDigest(path)
	if err != nil || !ok {
		return d, ok, err
	}
	m.cache.Add(key, d)
	return d, true, nil
}
