package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notegraph/notegraph/internal/model"
)

func TestFeedbackLogAppendOrder(t *testing.T) {
	l := NewFeedbackLog(newTestBackend(t))

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(&model.FeedbackEntry{
			ID:        fmt.Sprintf("id-%d", i),
			Type:      model.FeedbackResult,
			Query:     fmt.Sprintf("query %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	var got []string
	require.NoError(t, l.ForEach(func(e *model.FeedbackEntry) bool {
		got = append(got, e.ID)
		return true
	}))
	assert.Equal(t, []string{"id-0", "id-1", "id-2", "id-3", "id-4"}, got)
}

func TestFeedbackLogForEachEarlyStop(t *testing.T) {
	l := NewFeedbackLog(newTestBackend(t))

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(&model.FeedbackEntry{
			ID:        fmt.Sprintf("id-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	count := 0
	require.NoError(t, l.ForEach(func(e *model.FeedbackEntry) bool {
		count++
		return count < 2
	}))
	assert.Equal(t, 2, count)
}
