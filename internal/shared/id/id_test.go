package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedIDs(t *testing.T) {
	run := NewRunID()
	require.True(t, strings.HasPrefix(run.String(), "run_"))
	assert.True(t, IsValid(strings.TrimPrefix(run.String(), "run_")))

	ext := NewExtractionID()
	require.True(t, strings.HasPrefix(ext.String(), "ext_"))
	assert.True(t, IsValid(strings.TrimPrefix(ext.String(), "ext_")))
}

func TestGeneratorConcurrentUnique(t *testing.T) {
	g := NewGenerator()
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s := g.Generate().String()
				mu.Lock()
				seen[s] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}

func TestIsValidRejectsGarbage(t *testing.T) {
	assert.False(t, IsValid("not-a-ulid"))
	assert.False(t, IsValid(""))
}
