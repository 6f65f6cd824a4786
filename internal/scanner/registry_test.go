package scanner

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreguard-ai/loreguard/internal/types"
)

func TestRegistry_CompilesOnce(t *testing.T) {
	reg := NewRegistry()
	ruleID := types.NewID()

	var compileCount atomic.Int32
	compile := func() (Scanner, error) {
		compileCount.Add(1)
		return CompileSecrets(Config{})
	}

	first, err := reg.GetOrCompile(ruleID, compile)
	require.NoError(t, err)

	second, err := reg.GetOrCompile(ruleID, compile)
	require.NoError(t, err)

	assert.Same(t, first.(*SecretsScanner), second.(*SecretsScanner))
	assert.Equal(t, int32(1), compileCount.Load())
}

func TestRegistry_InvalidateForcesRecompile(t *testing.T) {
	reg := NewRegistry()
	ruleID := types.NewID()

	var compileCount atomic.Int32
	compile := func() (Scanner, error) {
		compileCount.Add(1)
		return CompileSecrets(Config{})
	}

	_, err := reg.GetOrCompile(ruleID, compile)
	require.NoError(t, err)

	reg.Invalidate(ruleID)
	assert.Equal(t, 0, reg.Len())

	_, err = reg.GetOrCompile(ruleID, compile)
	require.NoError(t, err)
	assert.Equal(t, int32(2), compileCount.Load())
}

func TestRegistry_FailedCompileLeavesNoEntry(t *testing.T) {
	reg := NewRegistry()
	ruleID := types.NewID()

	compileErr := errors.New("bad config")
	_, err := reg.GetOrCompile(ruleID, func() (Scanner, error) {
		return nil, compileErr
	})
	require.ErrorIs(t, err, compileErr)
	assert.Equal(t, 0, reg.Len())

	// Next call retries and can succeed.
	s, err := reg.GetOrCompile(ruleID, func() (Scanner, error) {
		return CompileSecrets(Config{})
	})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	ruleIDs := []types.ID{types.NewID(), types.NewID(), types.NewID()}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ruleID := ruleIDs[i%len(ruleIDs)]
			if i%7 == 0 {
				reg.Invalidate(ruleID)
				return
			}
			s, err := reg.GetOrCompile(ruleID, func() (Scanner, error) {
				return CompileSecrets(Config{})
			})
			assert.NoError(t, err)
			assert.NotNil(t, s)
		}(i)
	}
	wg.Wait()
}

func TestRegistry_InvalidateUnknownKey(t *testing.T) {
	reg := NewRegistry()
	reg.Invalidate(types.NewID()) // no-op, must not panic
	assert.Equal(t, 0, reg.Len())
}
