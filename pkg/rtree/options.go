package rtree

import (
	"github.com/docker/go-units"

	"github.com/nitrited/nitrite/pkg/nitriteerr"
)

// DefaultCachePages is the page cache size used when Options doesn't
// override it.
const DefaultCachePages = 256

// Options configures a new or reopened R-tree file. PageSizeStr/
// CacheSizeStr accept operator-friendly human sizes ("4KiB", "64MiB") the
// way a host application's configuration would, parsed with
// github.com/docker/go-units the same way the teacher's flag parsing
// favors readable units over raw integers.
type Options struct {
	PageSize      uint32
	CachePages    int
	PageSizeStr   string
	CacheSizeStr  string
}

// DefaultOptions returns an Options with the package defaults.
func DefaultOptions() Options {
	return Options{PageSize: DefaultPageSize, CachePages: DefaultCachePages}
}

// resolve applies PageSizeStr/CacheSizeStr over the numeric fields, and
// fills in defaults for anything left unset.
func (o Options) resolve() (Options, error) {
	out := o
	if out.PageSizeStr != "" {
		n, err := units.RAMInBytes(out.PageSizeStr)
		if err != nil {
			return Options{}, nitriteerr.Validation("invalid page size " + out.PageSizeStr)
		}
		out.PageSize = uint32(n)
	}
	if out.PageSize == 0 {
		out.PageSize = DefaultPageSize
	}
	if out.CacheSizeStr != "" {
		n, err := units.RAMInBytes(out.CacheSizeStr)
		if err != nil {
			return Options{}, nitriteerr.Validation("invalid cache size " + out.CacheSizeStr)
		}
		perPage := int64(out.PageSize)
		if perPage <= 0 {
			perPage = DefaultPageSize
		}
		out.CachePages = int(n / perPage)
	}
	if out.CachePages <= 0 {
		out.CachePages = DefaultCachePages
	}
	return out, nil
}
