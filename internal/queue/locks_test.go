package queue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockRegistrySerializesOneEquipment(t *testing.T) {
	reg := newLockRegistry()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := reg.Lock(7)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, reg.size())
}

func TestLockRegistryIndependentEquipment(t *testing.T) {
	reg := newLockRegistry()
	unlockA := reg.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := reg.Lock(2)
		unlock()
		close(done)
	}()
	<-done

	assert.Equal(t, 1, reg.size())
}

func TestLockRegistryReadersShare(t *testing.T) {
	reg := newLockRegistry()
	first := reg.RLock(3)
	second := reg.RLock(3)
	assert.Equal(t, 1, reg.size())
	first()
	second()
	assert.Equal(t, 0, reg.size())
}
