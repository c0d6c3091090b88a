package rtree

import "math"

// IntegrityReport is the result of CheckIntegrity (spec.md §4.7).
type IntegrityReport struct {
	TotalPages       int
	ValidPages       int
	CorruptPageIDs   []uint64
	WastedSpaceRatio float64 // 1 - (pages needed at max fanout / pages allocated)
	CacheMissRatio   float64
	TreeBalanceRatio float64 // actual height / ideal height for EntryCount at MaxLeafEntries fanout
	ShouldRebuild    bool
}

// rebuildWastedSpaceThreshold and friends gate ShouldRebuild's verdict
// (spec.md §4.7 "fragmentation analysis").
const (
	rebuildWastedSpaceThreshold = 0.30
	rebuildBalanceThreshold     = 1.5
)

// CheckIntegrity scans every page in [1, nextPageID) — the full range
// ever handed out, including freed pages still on the free list — and
// validates its CRC, then reports fragmentation signals used to decide
// whether a Rebuild is worthwhile (spec.md §4.7 "CheckIntegrity"). Dirty
// cached pages are flushed first so the scan reads what the tree holds.
func (t *RTree) CheckIntegrity() (IntegrityReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return IntegrityReport{}, err
	}
	if err := t.cache.flush(); err != nil {
		return IntegrityReport{}, err
	}

	highest := t.pager.highestAllocatedID()
	report := IntegrityReport{}

	report.TotalPages++
	if hdrBuf, err := t.pager.readPageRaw(0); err != nil {
		report.CorruptPageIDs = append(report.CorruptPageIDs, 0)
	} else if _, err := decodeHeader(hdrBuf); err != nil {
		report.CorruptPageIDs = append(report.CorruptPageIDs, 0)
	} else {
		report.ValidPages++
	}

	dataPages := 0
	for id := uint64(1); id <= highest; id++ {
		report.TotalPages++
		dataPages++
		buf, err := t.pager.readPageRaw(id)
		if err != nil {
			report.CorruptPageIDs = append(report.CorruptPageIDs, id)
			continue
		}
		tag, payload, err := decodePage(buf)
		if err != nil {
			report.CorruptPageIDs = append(report.CorruptPageIDs, id)
			continue
		}
		if _, err := decodeNode(tag, payload); err != nil {
			report.CorruptPageIDs = append(report.CorruptPageIDs, id)
			continue
		}
		report.ValidPages++
	}

	h := t.pager.snapshotHeader()
	idealPages := 0
	if h.EntryCount > 0 {
		idealPages = int(math.Ceil(float64(h.EntryCount) / float64(MaxLeafEntries)))
	}
	if dataPages > 0 && idealPages > 0 {
		report.WastedSpaceRatio = 1 - float64(idealPages)/float64(dataPages)
		if report.WastedSpaceRatio < 0 {
			report.WastedSpaceRatio = 0
		}
	}

	cs := t.cache.snapshot()
	if total := cs.CacheHits + cs.CacheMisses; total > 0 {
		report.CacheMissRatio = float64(cs.CacheMisses) / float64(total)
	}

	idealHeight := idealHeightFor(h.EntryCount)
	if idealHeight > 0 {
		report.TreeBalanceRatio = float64(h.Height) / float64(idealHeight)
	}

	report.ShouldRebuild = report.WastedSpaceRatio > rebuildWastedSpaceThreshold ||
		report.TreeBalanceRatio > rebuildBalanceThreshold ||
		len(report.CorruptPageIDs) > 0

	return report, nil
}

// idealHeightFor is ceil(log_MaxLeafEntries(n)), the minimum height a
// perfectly packed tree of n entries would need, floored at 1 for any
// non-empty tree.
func idealHeightFor(n uint64) int {
	if n == 0 {
		return 0
	}
	if n <= uint64(MaxLeafEntries) {
		return 1
	}
	h := math.Ceil(math.Log(float64(n)) / math.Log(float64(MaxLeafEntries)))
	if h < 1 {
		h = 1
	}
	return int(h)
}

// RepairOptions configures Repair (spec.md §4.7 "Repair").
type RepairOptions struct {
	RemoveCorrupt  bool
	MaxRepairs     int // 0 means unlimited
	RebuildIfNeeded bool
}

// RepairResult reports what Repair did.
type RepairResult struct {
	PagesRemoved  int
	Rebuilt       bool
	BulkLoad      BulkLoadResult
	RemainingBad  []uint64
}

// Repair scans for corrupt pages and, per opts, frees the ones it can
// safely drop (entries reachable only through a corrupt page are lost,
// not recovered) and/or rebuilds the tree to defragment afterward
// (spec.md §4.7 "Repair").
func (t *RTree) Repair(opts RepairOptions) (RepairResult, error) {
	report, err := t.CheckIntegrity()
	if err != nil {
		return RepairResult{}, err
	}

	var result RepairResult
	if opts.RemoveCorrupt {
		t.mu.Lock()
		for _, id := range report.CorruptPageIDs {
			if opts.MaxRepairs > 0 && result.PagesRemoved >= opts.MaxRepairs {
				result.RemainingBad = append(result.RemainingBad, id)
				continue
			}
			if err := t.freePage(id); err != nil {
				t.mu.Unlock()
				return result, err
			}
			result.PagesRemoved++
		}
		t.mu.Unlock()
	} else {
		result.RemainingBad = report.CorruptPageIDs
	}

	if opts.RebuildIfNeeded && (report.ShouldRebuild || result.PagesRemoved > 0) {
		bl, err := t.Rebuild()
		if err != nil {
			return result, err
		}
		result.Rebuilt = true
		result.BulkLoad = bl
	}
	return result, nil
}
