package audio

import "sync"

var framePool = sync.Pool{
	New: func() any {
		return make([]float32, 0, 1024)
	},
}

// AcquireFrame returns a sample buffer of the requested size from the pool.
func AcquireFrame(size int) []float32 {
	b := framePool.Get().([]float32)
	if cap(b) < size {
		return make([]float32, size)
	}
	return b[:size]
}

// ReleaseFrame returns a buffer obtained from AcquireFrame to the pool.
func ReleaseFrame(b []float32) {
	framePool.Put(b[:0])
}
