package filestore

import (
	"os"
	"sync"

	"github.com/dtn-go/bpcore/codec"
	"github.com/dtn-go/bpcore/mlog"
)

const mlogTag = "filestore"

// Create opens (and if necessary creates the directory for) a new
// store rooted at root, with a reclaim cache of cacheSize entries.
// root == "" uses DefaultRoot, cacheSize <= 0 uses DefaultCacheSize.
// xform is an optional payload transform (compress/encrypt) applied
// to every object's bytes before they are framed on disk; nil means
// no transform.
func Create(root string, cacheSize int, xform codec.Codec) (*Handle, error) {
	tableMu.Lock()
	defer tableMu.Unlock()

	if maxStores == 0 {
		initLocked(DefaultMaxStores)
	}
	if len(handles) >= maxStores {
		return nil, newError("Create", KindFailedStore, nil)
	}
	if root == "" {
		root = DefaultRoot
	}
	if len(root) > FileMaxFilename {
		return nil, newError("Create", KindFailedStore, nil)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, newError("Create", KindFailedOS, err)
	}

	h := &Handle{
		inUse:     true,
		serviceID: nextServiceID,
		root:      root,
		dataCount: 0,

		writeDataID:      1,
		readDataID:       1,
		retrieveDataID:   1,
		relinquishDataID: 1,

		cache: make([]cacheEntry, cacheSize),
		codec: xform,
	}
	h.cond = sync.NewCond(&h.mu)
	nextServiceID++
	handles = append(handles, h)

	mlog.Printf2(mlogTag, "filestore.Create root=%s service=%d", root, h.serviceID)
	return h, nil
}

// Destroy closes every open chapter file, flushes the current
// chapter's relinquish table if dirty, and removes h from the
// process-wide handle table. Calling Destroy twice on the same handle
// panics.
func (h *Handle) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.inUse {
		panic("filestore: Destroy called on a handle that is not in use")
	}

	h.flushRelinquishTableLocked()
	closeIfOpen(&h.writeFd)
	closeIfOpen(&h.readFd)
	closeIfOpen(&h.retrieveFd)
	h.inUse = false

	tableMu.Lock()
	defer tableMu.Unlock()
	for i, candidate := range handles {
		if candidate == h {
			handles = append(handles[:i], handles[i+1:]...)
			break
		}
	}
	return nil
}

func closeIfOpen(fd **os.File) {
	if *fd != nil {
		(*fd).Close()
		*fd = nil
	}
}

// GetCount returns the number of records currently live in the
// store (enqueued but not yet relinquished).
func (h *Handle) GetCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dataCount
}
