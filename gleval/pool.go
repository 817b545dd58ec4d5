package gleval

import (
	"errors"
	"fmt"

	"github.com/soypat/gany/glbuild"
)

// ValuePool holds buffers reused across evaluations to avoid allocations.
type ValuePool struct {
	Values bufPool[glbuild.Value]
	Float  bufPool[float32]
}

// GetValuePool returns the pool held by userData. userData may be a *ValuePool
// or implement a ValuePool() *ValuePool method.
func GetValuePool(userData any) (*ValuePool, error) {
	switch vp := userData.(type) {
	case *ValuePool:
		if vp == nil {
			return nil, errors.New("nil ValuePool")
		}
		return vp, nil
	case interface{ ValuePool() *ValuePool }:
		pool := vp.ValuePool()
		if pool == nil {
			return nil, errors.New("nil ValuePool returned by userData")
		}
		return pool, nil
	}
	return nil, fmt.Errorf("want *gleval.ValuePool in userData, got %T", userData)
}

// AssertAllReleased panics if any buffer is acquired and not released.
func (vp *ValuePool) AssertAllReleased() {
	if err := vp.Values.assertAllReleased(); err != nil {
		panic("values: " + err.Error())
	}
	if err := vp.Float.assertAllReleased(); err != nil {
		panic("float: " + err.Error())
	}
}

type bufPool[T any] struct {
	bufs     [][]T
	acquired []bool
}

// Acquire returns a zeroed buffer of length n. It must be released with [bufPool.Release].
func (bp *bufPool[T]) Acquire(n int) []T {
	for i, buf := range bp.bufs {
		if !bp.acquired[i] && cap(buf) >= n {
			bp.acquired[i] = true
			buf = buf[:n]
			clear(buf)
			return buf
		}
	}
	buf := make([]T, n)
	bp.bufs = append(bp.bufs, buf)
	bp.acquired = append(bp.acquired, true)
	return buf
}

func (bp *bufPool[T]) Release(buf []T) error {
	for i, b := range bp.bufs {
		if cap(b) > 0 && cap(buf) > 0 && &b[:1][0] == &buf[:1][0] {
			if !bp.acquired[i] {
				return errors.New("release of unacquired buffer")
			}
			bp.acquired[i] = false
			return nil
		}
	}
	return errors.New("release of buffer not in pool")
}

func (bp *bufPool[T]) assertAllReleased() error {
	for i, acq := range bp.acquired {
		if acq {
			return fmt.Errorf("buffer %d of length %d not released", i, len(bp.bufs[i]))
		}
	}
	return nil
}
