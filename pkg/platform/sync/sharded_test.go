package sync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutexSerializesSameKey(t *testing.T) {
	m := NewShardedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Do("suggestion-42", func() {
				counter++
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedMutexEmptyKey(t *testing.T) {
	m := NewShardedMutex()
	// Must not panic; empty keys map to a fixed shard.
	m.Lock("")
	m.Unlock("")
}

func TestShardForIsStable(t *testing.T) {
	m := NewShardedMutex()
	assert.Equal(t, m.shardFor("abc"), m.shardFor("abc"))
}
