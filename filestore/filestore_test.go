package filestore

import (
	"os"
	"testing"
	"time"

	"github.com/stvp/assert"
)

func newTestHandle(t *testing.T) *Handle {
	h, err := Create(t.TempDir(), 4, nil)
	assert.Nil(t, err)
	t.Cleanup(func() { _ = h.Destroy() })
	return h
}

func TestEnqueueDequeueOrder(t *testing.T) {
	h := newTestHandle(t)

	sid1, err := h.Enqueue(1, []byte("hello"), nil)
	assert.Nil(t, err)
	sid2, err := h.Enqueue(2, []byte("wor"), []byte("ld"))
	assert.Nil(t, err)
	assert.True(t, sid2 > sid1)

	gotSid, handle, data, err := h.Dequeue(0)
	assert.Nil(t, err)
	assert.Equal(t, gotSid, sid1)
	assert.Equal(t, handle, int32(1))
	assert.Equal(t, string(data), "hello")

	gotSid, handle, data, err = h.Dequeue(0)
	assert.Nil(t, err)
	assert.Equal(t, gotSid, sid2)
	assert.Equal(t, handle, int32(2))
	assert.Equal(t, string(data), "world")
}

func TestDequeueTimesOutWhenEmpty(t *testing.T) {
	h := newTestHandle(t)

	_, _, _, err := h.Dequeue(10 * time.Millisecond)
	assert.NotNil(t, err)
	assert.True(t, IsTimeout(err))
}

func TestDequeueWakesOnEnqueue(t *testing.T) {
	h := newTestHandle(t)
	done := make(chan error, 1)

	go func() {
		_, _, _, err := h.Dequeue(time.Second)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	_, err := h.Enqueue(9, []byte("x"), nil)
	assert.Nil(t, err)

	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(time.Second):
		t.Fatal("Dequeue never woke up")
	}
}

func TestRetrieveCacheHitAfterDequeue(t *testing.T) {
	h := newTestHandle(t)

	sid, err := h.Enqueue(7, []byte("payload"), nil)
	assert.Nil(t, err)

	_, _, _, err = h.Dequeue(0)
	assert.Nil(t, err)

	handle, data, err := h.Retrieve(sid, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, handle, int32(7))
	assert.Equal(t, string(data), "payload")
}

func TestRetrieveFromDiskWithoutDequeue(t *testing.T) {
	h := newTestHandle(t)

	sid, err := h.Enqueue(3, []byte("from-disk"), nil)
	assert.Nil(t, err)

	handle, data, err := h.Retrieve(sid, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, handle, int32(3))
	assert.Equal(t, string(data), "from-disk")
}

func TestRetrieveMultipleSequential(t *testing.T) {
	h := newTestHandle(t)

	var sids []uint64
	for i := 0; i < 5; i++ {
		sid, err := h.Enqueue(int32(i), []byte{byte('a' + i)}, nil)
		assert.Nil(t, err)
		sids = append(sids, sid)
	}

	for i, sid := range sids {
		handle, data, err := h.Retrieve(sid, time.Second)
		assert.Nil(t, err)
		assert.Equal(t, handle, int32(i))
		assert.Equal(t, string(data), string([]byte{byte('a' + i)}))
		assert.Nil(t, h.Release(sid))
	}
}

func TestRetrieveOutOfOrderOnFreshHandle(t *testing.T) {
	h := newTestHandle(t)

	var sids []uint64
	for i := 0; i < 3; i++ {
		sid, err := h.Enqueue(int32(i), []byte{byte('a' + i)}, nil)
		assert.Nil(t, err)
		sids = append(sids, sid)
	}

	order := []int{2, 0, 1}
	for _, i := range order {
		handle, data, err := h.Retrieve(sids[i], time.Second)
		assert.Nil(t, err)
		assert.Equal(t, handle, int32(i))
		assert.Equal(t, string(data), string([]byte{byte('a' + i)}))
		assert.Nil(t, h.Release(sids[i]))
	}
}

func TestDequeueZeroTimeoutPollsWithoutBlocking(t *testing.T) {
	h := newTestHandle(t)

	start := time.Now()
	_, _, _, err := h.Dequeue(0)
	elapsed := time.Since(start)

	assert.NotNil(t, err)
	assert.True(t, IsTimeout(err))
	assert.True(t, elapsed < 100*time.Millisecond)
}

func TestRetrieveTimesOutOnLockedCacheSlot(t *testing.T) {
	// newTestHandle uses a 4-entry reclaim cache, so sid 1 (dataID 0)
	// and sid 5 (dataID 4) collide on cache slot 0.
	h := newTestHandle(t)

	var sids []uint64
	for i := 0; i < 5; i++ {
		sid, err := h.Enqueue(int32(i), []byte{byte('a' + i)}, nil)
		assert.Nil(t, err)
		sids = append(sids, sid)
	}

	_, _, _, err := h.Dequeue(0)
	assert.Nil(t, err)

	// Slot 0 now holds sid 1's entry, still locked (never Released).
	// Retrieving sid 5, which collides on the same slot, must wait
	// for it to free up rather than clobbering it outright.
	_, _, err = h.Retrieve(sids[4], 0)
	assert.NotNil(t, err)
	assert.True(t, IsTimeout(err))
}

func TestReleaseRejectsUnknownSid(t *testing.T) {
	h := newTestHandle(t)
	err := h.Release(1)
	assert.NotNil(t, err)
}

func TestRelinquishDecrementsCount(t *testing.T) {
	h := newTestHandle(t)

	sid, err := h.Enqueue(1, []byte("a"), nil)
	assert.Nil(t, err)
	assert.Equal(t, h.GetCount(), 1)

	assert.Nil(t, h.Relinquish(sid))
	assert.Equal(t, h.GetCount(), 0)

	// relinquishing the same sid twice is a no-op, not an error
	assert.Nil(t, h.Relinquish(sid))
	assert.Equal(t, h.GetCount(), 0)
}

func TestRelinquishDeletesFullChapter(t *testing.T) {
	h := newTestHandle(t)

	sids := make([]uint64, 0, FileDataCount)
	for i := 0; i < FileDataCount; i++ {
		sid, err := h.Enqueue(int32(i), []byte{byte(i)}, nil)
		assert.Nil(t, err)
		sids = append(sids, sid)
	}
	assert.Equal(t, h.GetCount(), FileDataCount)

	for _, sid := range sids {
		assert.Nil(t, h.Relinquish(sid))
	}
	assert.Equal(t, h.GetCount(), 0)

	_, err := os.Stat(datPath(h.root, h.serviceID, 0))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(tblPath(h.root, h.serviceID, 0))
	assert.True(t, os.IsNotExist(err))
}

func TestEnqueueAcrossChapterBoundary(t *testing.T) {
	h := newTestHandle(t)

	var last uint64
	for i := 0; i < FileDataCount+5; i++ {
		sid, err := h.Enqueue(int32(i), []byte{byte(i)}, nil)
		assert.Nil(t, err)
		last = sid
	}
	assert.Equal(t, last, uint64(FileDataCount+5))

	for i := 0; i < FileDataCount+5; i++ {
		sid, handle, _, err := h.Dequeue(0)
		assert.Nil(t, err)
		assert.Equal(t, handle, int32(i))
		assert.Equal(t, sid, uint64(i+1))
		assert.Nil(t, h.Release(sid))
	}
}

func TestReclaimAsyncRelinquishes(t *testing.T) {
	h := newTestHandle(t)

	sid, err := h.Enqueue(1, []byte("a"), nil)
	assert.Nil(t, err)

	done := make(chan error, 1)
	h.ReclaimAsync(sid, done)

	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(time.Second):
		t.Fatal("ReclaimAsync never completed")
	}
	assert.Equal(t, h.GetCount(), 0)
}

func TestDestroyedHandlePanics(t *testing.T) {
	h, err := Create(t.TempDir(), 4, nil)
	assert.Nil(t, err)
	assert.Nil(t, h.Destroy())

	defer func() {
		r := recover()
		assert.NotNil(t, r)
	}()
	_, _ = h.Enqueue(1, []byte("x"), nil)
}
