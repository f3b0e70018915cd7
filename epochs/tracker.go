// Package epochs tracks authority-set succession across competing forks.
//
// Until finalization collapses them, forks may disagree about which
// authority set is in force: a change announced on one branch binds only
// that branch. The tracker therefore keys every pending change by the
// header that announced it and resolves "set as of block X" lookups
// through an ancestry oracle, never through process-wide state.
package epochs

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/arclight-network/arclight/types"
)

// Ancestry answers fork-relation queries over retained headers. The header
// tree implements it.
type Ancestry interface {
	// IsDescendant reports whether desc is equal to or a descendant of anc.
	IsDescendant(anc, desc types.Hash) (bool, error)
}

type pendingChange struct {
	announcedAt     types.Hash
	announcedNumber uint64
	activation      uint64
	forced          bool
	authorities     []types.Authority
}

// Tracker holds the canonical authority set as of the finalized root plus
// every fork-scoped pending change.
//
// Tracker is not safe for concurrent use; the engine serializes access
// alongside tree mutation.
type Tracker struct {
	current *types.AuthoritySet
	pending []*pendingChange

	// memoizes CurrentSet lookups; purged on any mutation
	cache *lru.Cache
}

const defaultCacheSize = 128

// NewTracker starts from the set in force at the tree root, typically the
// genesis authority set.
func NewTracker(genesis *types.AuthoritySet) (*Tracker, error) {
	if genesis == nil {
		return nil, fmt.Errorf("genesis authority set is required")
	}
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Tracker{current: genesis, cache: cache}, nil
}

// CurrentSet resolves the authority set in force for a block at the given
// fork point and number. A pending change applies iff its announcing
// header is an ancestor-or-equal of the fork point and its activation
// height has been reached.
func (tr *Tracker) CurrentSet(forkPoint types.Hash, number uint64, anc Ancestry) (*types.AuthoritySet, error) {
	type cacheKey struct {
		hash   types.Hash
		number uint64
	}
	key := cacheKey{forkPoint, number}
	if v, ok := tr.cache.Get(key); ok {
		return v.(*types.AuthoritySet), nil
	}

	// Later announcements supersede earlier ones on the same fork, so keep
	// the applicable change with the highest announcement number.
	var applicable *pendingChange
	for _, pc := range tr.pending {
		if pc.activation > number {
			continue
		}
		onFork, err := anc.IsDescendant(pc.announcedAt, forkPoint)
		if err != nil || !onFork {
			continue
		}
		if applicable == nil || pc.announcedNumber > applicable.announcedNumber {
			applicable = pc
		}
	}

	set := tr.current
	if applicable != nil {
		next, err := types.NewAuthoritySet(applicable.authorities, tr.current.ID+1)
		if err != nil {
			return nil, err
		}
		set = next
	}

	tr.cache.Add(key, set)
	return set, nil
}

// CheckEpochChange reports whether a change announced on the fork ending
// at forkPoint would be accepted, without mutating tracker state. Callers
// use it to validate a header's digest before committing the header.
func (tr *Tracker) CheckEpochChange(forkPoint types.Hash, announcedNumber uint64, change *types.AuthorityChange, anc Ancestry) error {
	if _, err := types.NewAuthoritySet(change.Authorities, tr.current.ID+1); err != nil {
		return err
	}
	if change.Forced {
		return nil
	}
	for _, pc := range tr.pending {
		if !tr.onSameFork(pc.announcedAt, forkPoint, anc) {
			continue
		}
		if pc.forced {
			return fmt.Errorf("fork %s has a forced change pending, scheduled change rejected",
				forkPoint.ShortString())
		}
		if pc.activation > announcedNumber {
			return fmt.Errorf("fork %s already has a scheduled change pending at %d",
				forkPoint.ShortString(), pc.activation)
		}
	}
	return nil
}

// ApplyEpochChange records an authority change announced in the digest of
// the given header. Scheduled changes activate change.Delay blocks after
// the announcement; forced changes activate immediately and cancel any
// scheduled change pending on the same fork.
//
// A fork carries at most one unactivated scheduled change: a second
// announcement is rejected while the first's activation height is still
// ahead. Once a change has reached its activation height but finalization
// has not yet collapsed it, a later announcement on the same fork
// supersedes it; CurrentSet and FinalizeUpTo resolve to the highest
// announcement height.
func (tr *Tracker) ApplyEpochChange(announcedAt types.Hash, announcedNumber uint64, change *types.AuthorityChange, anc Ancestry) error {
	if change.Forced {
		// A forced change invalidates every scheduled change on this fork,
		// announced before or after it.
		kept := tr.pending[:0]
		for _, pc := range tr.pending {
			sameFork := tr.onSameFork(pc.announcedAt, announcedAt, anc)
			if sameFork && !pc.forced {
				continue
			}
			kept = append(kept, pc)
		}
		tr.pending = kept
	} else {
		for _, pc := range tr.pending {
			if !tr.onSameFork(pc.announcedAt, announcedAt, anc) {
				continue
			}
			if pc.forced {
				return fmt.Errorf("fork %s has a forced change pending, scheduled change rejected",
					announcedAt.ShortString())
			}
			if pc.activation > announcedNumber {
				return fmt.Errorf("fork %s already has a scheduled change pending at %d",
					announcedAt.ShortString(), pc.activation)
			}
		}
	}

	activation := announcedNumber
	if !change.Forced {
		activation = announcedNumber + uint64(change.Delay)
	}

	tr.pending = append(tr.pending, &pendingChange{
		announcedAt:     announcedAt,
		announcedNumber: announcedNumber,
		activation:      activation,
		forced:          change.Forced,
		authorities:     change.Authorities,
	})
	tr.cache.Purge()
	return nil
}

// FinalizeUpTo collapses fork-scoped state after finalization. Pending
// changes on losing forks are discarded; a change activated on the
// finalized path becomes the canonical current set.
//
// It must run while the finalized path is still retained by the ancestry
// oracle: the tree prunes the new root's strict ancestors on Finalize, and
// with them the headers that announced pending changes.
func (tr *Tracker) FinalizeUpTo(finalized types.Hash, number uint64, anc Ancestry) {
	var activated *pendingChange
	kept := tr.pending[:0]
	for _, pc := range tr.pending {
		onPath, err := anc.IsDescendant(pc.announcedAt, finalized)
		if err == nil && onPath {
			if pc.activation <= number {
				if activated == nil || pc.announcedNumber > activated.announcedNumber {
					activated = pc
				}
				continue
			}
			// Not yet active. Every surviving block descends from the new
			// root, so re-anchor the change there before the announcing
			// header is pruned.
			pc.announcedAt = finalized
			kept = append(kept, pc)
			continue
		}

		// The announcing header may descend from the new root: the change
		// is still live on a surviving fork.
		live, err := anc.IsDescendant(finalized, pc.announcedAt)
		if err == nil && live {
			kept = append(kept, pc)
		}
	}
	tr.pending = kept

	if activated != nil {
		next, err := types.NewAuthoritySet(activated.authorities, tr.current.ID+1)
		if err != nil {
			panic(fmt.Sprintf("epochs: finalized authority change is invalid: %v", err))
		}
		tr.current = next
	}
	tr.cache.Purge()
}

// Current returns the canonical set as of the finalized root.
func (tr *Tracker) Current() *types.AuthoritySet {
	return tr.current
}

// PendingCount returns the number of fork-scoped changes awaiting
// finalization.
func (tr *Tracker) PendingCount() int {
	return len(tr.pending)
}

// SetCurrent replaces the canonical set wholesale. Used by warp sync when
// trust is re-established at a new finalized point.
func (tr *Tracker) SetCurrent(set *types.AuthoritySet) {
	tr.current = set
	tr.pending = nil
	tr.cache.Purge()
}

func (tr *Tracker) onSameFork(a, b types.Hash, anc Ancestry) bool {
	if down, err := anc.IsDescendant(a, b); err == nil && down {
		return true
	}
	if up, err := anc.IsDescendant(b, a); err == nil && up {
		return true
	}
	return false
}
