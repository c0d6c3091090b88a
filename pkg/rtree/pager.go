package rtree

import (
	"os"
	"sync"

	"github.com/nitrited/nitrite/pkg/nitriteerr"
)

// pager owns the R-tree file: fixed-size page I/O, the header, and the
// free list (spec.md §4.6). The free list and header are guarded by pmu,
// independent of the page cache's own lock.
type pager struct {
	pmu  sync.Mutex
	file *os.File

	pageSize uint32
	header   fileHeader

	freeStack    []uint64
	freedHeadSet bool // whether freeListHead has been persisted this session
}

// createPager creates a new R-tree file at path with an empty header.
func createPager(path string, pageSize uint32) (*pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, nitriteerr.IO("failed to create rtree file "+path, err)
	}
	p := &pager{file: f, pageSize: pageSize, header: newFileHeader(pageSize)}
	if err := p.writeHeaderLocked(); err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

// openPager opens an existing R-tree file, reading and validating its
// header. If the on-disk version differs from CurrentVersion, migrate
// rewrites the file in place and bumps the version (spec.md §4.7
// "Migration").
func openPager(path string) (*pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, nitriteerr.IO("failed to open rtree file "+path, err)
	}
	hdrBuf := make([]byte, headerEncodedSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		f.Close()
		return nil, nitriteerr.IO("failed to read rtree header", err)
	}
	h, err := decodeHeader(hdrBuf)
	if err != nil {
		f.Close()
		return nil, err
	}
	p := &pager{file: f, pageSize: h.PageSize, header: h}
	if h.Version != CurrentVersion {
		if err := p.migrate(h.Version); err != nil {
			f.Close()
			return nil, err
		}
	}
	return p, nil
}

// migrate rewrites header fields that changed shape between fromVersion
// and CurrentVersion. There is exactly one version to date, so this is a
// no-op beyond bumping the stamped version; it exists as the hook future
// format changes attach to (spec.md §4.7).
func (p *pager) migrate(fromVersion uint32) error {
	p.header.Version = CurrentVersion
	return p.writeHeaderLocked()
}

func (p *pager) writeHeaderLocked() error {
	buf := encodeHeader(p.header, p.pageSize)
	if _, err := p.file.WriteAt(buf, 0); err != nil {
		return nitriteerr.IO("failed to write rtree header", err)
	}
	return nil
}

// writeHeader persists the current in-memory header.
func (p *pager) writeHeader() error {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	return p.writeHeaderLocked()
}

func (p *pager) snapshotHeader() fileHeader {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	return p.header
}

// readPageRaw reads the fixed-size record for page id.
func (p *pager) readPageRaw(id uint64) ([]byte, error) {
	buf := make([]byte, p.pageSize)
	off := int64(id) * int64(p.pageSize)
	if _, err := p.file.ReadAt(buf, off); err != nil {
		return nil, nitriteerr.IO("failed to read rtree page", err)
	}
	return buf, nil
}

// writePageRaw writes the fixed-size record for page id.
func (p *pager) writePageRaw(id uint64, buf []byte) error {
	off := int64(id) * int64(p.pageSize)
	if _, err := p.file.WriteAt(buf, off); err != nil {
		return nitriteerr.IO("failed to write rtree page", err)
	}
	return nil
}

// allocatePage implements spec.md §4.6's allocator: pop the in-memory
// free stack first, else pop the persisted free-list head (clearing it),
// else bump next-page-id.
func (p *pager) allocatePage() (uint64, error) {
	p.pmu.Lock()
	defer p.pmu.Unlock()

	if n := len(p.freeStack); n > 0 {
		id := p.freeStack[n-1]
		p.freeStack = p.freeStack[:n-1]
		return id, nil
	}
	if p.header.FreeListHead != NonePage {
		id := p.header.FreeListHead
		p.header.FreeListHead = NonePage
		if err := p.writeHeaderLocked(); err != nil {
			return 0, err
		}
		return id, nil
	}
	id := p.header.NextPageID
	p.header.NextPageID++
	if err := p.writeHeaderLocked(); err != nil {
		return 0, err
	}
	return id, nil
}

// freePage pushes id onto the in-memory free stack. The first id freed
// in this pager's lifetime is also persisted into the header's
// free-list-head for crash recovery (spec.md §4.6).
func (p *pager) freePage(id uint64) error {
	p.pmu.Lock()
	defer p.pmu.Unlock()

	p.freeStack = append(p.freeStack, id)
	if !p.freedHeadSet {
		p.freedHeadSet = true
		p.header.FreeListHead = id
		return p.writeHeaderLocked()
	}
	return nil
}

func (p *pager) setRoot(root uint64, height uint32) error {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	p.header.RootPage = root
	p.header.Height = height
	return p.writeHeaderLocked()
}

func (p *pager) addEntryCount(delta int64) error {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	if delta >= 0 {
		p.header.EntryCount += uint64(delta)
	} else {
		d := uint64(-delta)
		if d > p.header.EntryCount {
			p.header.EntryCount = 0
		} else {
			p.header.EntryCount -= d
		}
	}
	return p.writeHeaderLocked()
}

func (p *pager) sync() error {
	if err := p.file.Sync(); err != nil {
		return nitriteerr.IO("failed to fsync rtree file", err)
	}
	return nil
}

func (p *pager) close() error {
	if err := p.file.Close(); err != nil {
		return nitriteerr.IO("failed to close rtree file", err)
	}
	return nil
}

// highestAllocatedID returns the largest page id ever handed out, used by
// integrity checking to bound the scan range.
func (p *pager) highestAllocatedID() uint64 {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	if p.header.NextPageID == 0 {
		return 0
	}
	return p.header.NextPageID - 1
}
