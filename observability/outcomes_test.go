package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Outcomes_Concurrent_Recording(t *testing.T) {
	req := require.New(t)
	outcomes := NewOutcomes()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				outcomes.Record(OutcomeSuccessText)
			}
			outcomes.Record(OutcomeBannedWord)
		}()
	}
	wg.Wait()

	req.Equal(uint64(1000), outcomes.Count(OutcomeSuccessText))
	req.Equal(uint64(10), outcomes.Count(OutcomeBannedWord))
	req.Zero(outcomes.Count(OutcomeException))

	snapshot := outcomes.Snapshot()
	req.Equal(uint64(1000), snapshot[OutcomeSuccessText])
	req.NotContains(snapshot, OutcomeException)
}
