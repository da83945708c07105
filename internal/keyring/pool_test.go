package keyring

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadFromEnv_MainThenNumberedUntilGap(t *testing.T) {
	pool := LoadFromEnv(envMap(map[string]string{
		"SERPER_API_KEY":   "main",
		"SERPER_API_KEY_1": "one",
		"SERPER_API_KEY_2": "two",
		"SERPER_API_KEY_4": "four", // after the gap, never read
		"EXA_API_KEY_1":    "exa-one",
		"JINA_API_KEY":     "   ",
	}))

	assert.Equal(t, 3, pool.Size("SERPER"))
	assert.Equal(t, 1, pool.Size("EXA"), "numbered keys are read even without a main key")
	assert.False(t, pool.Has("JINA"), "blank keys do not configure a provider")
	assert.False(t, pool.Has("GOOGLE"))
	assert.Equal(t, []string{"EXA", "SERPER"}, pool.Providers())
	assert.Equal(t, 4, pool.TotalKeys())

	var got []string
	for range 3 {
		k, ok := pool.Next("SERPER")
		require.True(t, ok)
		got = append(got, k)
	}
	assert.Equal(t, []string{"main", "one", "two"}, got)
}

func TestLoadFromEnv_ExplicitProviders(t *testing.T) {
	pool := LoadFromEnv(envMap(map[string]string{
		"BRAVE_API_KEY":  "b",
		"SERPER_API_KEY": "s",
	}), "brave")

	assert.True(t, pool.Has("BRAVE"))
	assert.False(t, pool.Has("SERPER"))
}

func TestNext_EmptyProviderIsAbsent(t *testing.T) {
	pool := New(map[string][]string{"SERPER": {}})

	for range 5 {
		key, ok := pool.Next("SERPER")
		assert.False(t, ok)
		assert.Empty(t, key)
	}
	key, ok := pool.Next("UNKNOWN")
	assert.False(t, ok)
	assert.Empty(t, key)
	assert.Empty(t, pool.Stats(), "absent providers do not count requests")
}

func TestNext_RoundRobinDistribution(t *testing.T) {
	tests := []struct {
		keys  int
		calls int
	}{
		{keys: 1, calls: 4},
		{keys: 3, calls: 7},
		{keys: 4, calls: 4},
		{keys: 5, calls: 23},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d keys %d calls", tt.keys, tt.calls), func(t *testing.T) {
			keys := make([]string, tt.keys)
			for i := range keys {
				keys[i] = fmt.Sprintf("k%d", i)
			}
			pool := New(map[string][]string{"EXA": keys})

			counts := map[string]int{}
			var last string
			for range tt.calls {
				k, ok := pool.Next("exa")
				require.True(t, ok)
				counts[k]++
				last = k
			}

			floor := tt.calls / tt.keys
			ceil := floor
			if tt.calls%tt.keys != 0 {
				ceil++
			}
			for _, k := range keys {
				assert.GreaterOrEqual(t, counts[k], floor, k)
				assert.LessOrEqual(t, counts[k], ceil, k)
			}

			// the cycle continues where the previous call stopped
			lastIdx := (tt.calls - 1) % tt.keys
			assert.Equal(t, keys[lastIdx], last)
			next, _ := pool.Next("EXA")
			assert.Equal(t, keys[(lastIdx+1)%tt.keys], next)
		})
	}
}

func TestNext_ConcurrentCallersStayBalanced(t *testing.T) {
	pool := New(map[string][]string{"SERPER": {"a", "b", "c", "d"}})

	const workers, perWorker = 8, 50
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = map[string]int{}
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				k, ok := pool.Next("SERPER")
				if !ok {
					continue
				}
				mu.Lock()
				counts[k]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, k := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, workers*perWorker/4, counts[k], k)
	}
	assert.Equal(t, workers*perWorker, pool.Stats()["SERPER"].Requests)
}

func TestStats_CountersAndCopy(t *testing.T) {
	pool := New(map[string][]string{"GOOGLE": {"g"}})

	_, _ = pool.Next("GOOGLE")
	_, _ = pool.Next("GOOGLE")
	pool.RecordSuccess("GOOGLE")
	pool.RecordFailure("google")

	stats := pool.Stats()
	assert.Equal(t, ProviderStats{Requests: 2, Successes: 1, Failures: 1}, stats["GOOGLE"])

	stats["GOOGLE"] = ProviderStats{}
	assert.Equal(t, 2, pool.Stats()["GOOGLE"].Requests, "Stats returns a copy")
}
