package filestore

import (
	"github.com/dtn-go/bpcore/mlog"
)

// ReclaimAsync relinquishes sid on a background goroutine, bounded by
// the package-wide reclaim limiter so a burst of relinquishes spread
// across many handles cannot pile up behind a single handle's lock for
// longer than necessary. Relinquish itself is synchronous and correct
// without this; ReclaimAsync exists purely to decouple a caller's hot
// path (e.g. a bundle delivery confirmation) from the chapter-delete
// I/O relinquishing the last record in a chapter can trigger.
//
// done, if non-nil, is sent the error Relinquish returned (nil on
// success) before being left open for the caller to close.
func (h *Handle) ReclaimAsync(sid uint64, done chan<- error) {
	tableMu.Lock()
	if maxStores == 0 {
		initLocked(DefaultMaxStores)
	}
	limiter := reclaimLimit
	tableMu.Unlock()

	limiter.Go(func() {
		err := h.Relinquish(sid)
		if err != nil {
			mlog.Printf2(mlogTag, "filestore.ReclaimAsync service=%d sid=%d err=%v", h.serviceID, sid, err)
		}
		if done != nil {
			done <- err
		}
	})
}
