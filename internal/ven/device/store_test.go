package device

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUpdateRollsBackOnError(t *testing.T) {
	store := NewStore(newDefaultState(t, 10))
	before := store.Snapshot()

	boom := errors.New("boom")
	err := store.Update(func(st *State) error {
		c, _ := st.Circuit("heater1")
		c.CurrentKW = 0
		st.ActiveEvent = &Event{ID: "evt-1", RequestedShedKW: 1.5, ActualShedKW: 1.5}
		st.MessageNum = 42
		return boom
	})
	require.ErrorIs(t, err, boom)

	after := store.Snapshot()
	assert.Equal(t, before, after)
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore(newDefaultState(t, 10))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Update(func(st *State) error {
				st.Distribute(8 + float64(i%4))
				st.MessageNum++
				return nil
			})
		}(i)
		go func() {
			defer wg.Done()
			snap := store.Snapshot()
			var sum float64
			for _, c := range snap.Circuits {
				sum += c.CurrentKW
			}
			assert.InDelta(t, snap.PowerKW, sum, 1e-9)
			assert.InDelta(t, snap.BasePowerKW, snap.PowerKW, 1e-9)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 50, store.Snapshot().MessageNum)
}

func TestSnapshotIsDetached(t *testing.T) {
	store := NewStore(newDefaultState(t, 10))
	snap := store.Snapshot()
	snap.Circuits[0].CurrentKW = 99

	store.View(func(st *State) {
		assert.NotEqual(t, 99.0, st.Circuits[0].CurrentKW)
	})
}
