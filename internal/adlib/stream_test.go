package adlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamIsSingleUse(t *testing.T) {
	runs := 0
	s := newStream(func(yield func(Batch) bool) EndReason {
		runs++
		for i := 0; i < 3; i++ {
			if !yield(Batch{{"i": i}}) {
				return ReasonStopped
			}
		}
		return ReasonEndOfData
	})
	assert.Equal(t, ReasonNotStarted, s.Reason())

	assert.Len(t, s.Collect(), 3)
	assert.Equal(t, ReasonEndOfData, s.Reason())

	assert.Empty(t, s.Collect())
	assert.Equal(t, 1, runs)
	assert.Equal(t, ReasonEndOfData, s.Reason())
}

func TestEndReasonString(t *testing.T) {
	assert.Equal(t, "retries-exhausted", ReasonRetriesExhausted.String())
	assert.Equal(t, "malformed-response", ReasonMalformed.String())
	assert.Equal(t, "unknown", EndReason(99).String())
}
