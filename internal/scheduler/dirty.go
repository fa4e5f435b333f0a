package scheduler

import (
	"github.com/byggbuild/bygg/internal/action"
	"github.com/byggbuild/bygg/internal/cache"
	"github.com/byggbuild/bygg/internal/digest"
)

// dirtyResult is the outcome of evaluating one action against the cache.
type dirtyResult struct {
	dirty bool
}

// evaluateDirty runs the eight-step dirtiness algorithm for a against the
// cached Entry, if any. memo may be nil.
func evaluateDirty(a *action.Action, store cache.Store, memo *digest.Memo, alwaysMake bool) (dirtyResult, error) {
	// 1. always_make forces every action dirty.
	if alwaysMake {
		return dirtyResult{dirty: true}, nil
	}

	// 2. Phony actions (no inputs, outputs, or dynamic dependency) are
	// always dirty.
	if a.IsPhony() {
		return dirtyResult{dirty: true}, nil
	}

	// 3. No cache entry, or one missing either digest, is dirty.
	cached, ok := store.Get(a.Name)
	if !ok || cached.InputsDigest == "" || cached.OutputsDigest == "" {
		return dirtyResult{dirty: true}, nil
	}

	// 4. Outputs must still match what was recorded; any now-missing output
	// or a changed outputs digest is dirty.
	outDigest, anyOutMissing, err := digest.DependencyDigest(memo, a.Outputs)
	if err != nil {
		return dirtyResult{}, err
	}
	if anyOutMissing || outDigest != cached.OutputsDigest {
		return dirtyResult{dirty: true}, nil
	}

	// 5. Compute the current inputs digest for the later comparison at
	// step 7; a missing dependency file changes the digest itself, which
	// step 7 catches, so any_missing is ignored here.
	inDigest, _, err := digest.DependencyDigest(memo, a.DependencyFiles())
	if err != nil {
		return dirtyResult{}, err
	}

	// 6. A dynamic dependency must still evaluate to what was recorded.
	if a.DynamicDependency != nil {
		value, present := a.DynamicDependency()
		if !present {
			return dirtyResult{dirty: true}, nil
		}
		if !cached.HasDynamic || digest.DigestOfList([]string{value}) != cached.DynamicDigest {
			return dirtyResult{dirty: true}, nil
		}
	}

	// 7. Inputs digest must be unchanged.
	if cached.InputsDigest != inDigest {
		return dirtyResult{dirty: true}, nil
	}

	// 8. Nothing changed: clean.
	return dirtyResult{dirty: false}, nil
}
