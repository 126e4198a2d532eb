package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/reconctl/models"
)

func snap(status models.Status) *models.Scan {
	return &models.Scan{ID: "abc123", Domain: "example.com", Status: status}
}

func TestCurrentNilBeforeFirstUpdate(t *testing.T) {
	s := New("abc123")
	assert.Nil(t, s.Current())
	assert.Equal(t, "abc123", s.JobID())
}

func TestUpdateReplacesWholesale(t *testing.T) {
	s := New("abc123")
	first := snap(models.StatusRunning)
	first.Technologies = []string{"nginx"}
	require.True(t, s.Update(first))

	// A newer snapshot without technologies replaces, it does not merge.
	second := snap(models.StatusRunning)
	require.True(t, s.Update(second))
	assert.Nil(t, s.Current().Technologies)
	assert.Same(t, second, s.Current())
}

func TestTerminalSnapshotIsImmutable(t *testing.T) {
	for _, terminal := range []models.Status{models.StatusCompleted, models.StatusFailed} {
		t.Run(string(terminal), func(t *testing.T) {
			s := New("abc123")
			final := snap(terminal)
			require.True(t, s.Update(final))

			var notified int
			s.Subscribe(func(*models.Scan) { notified++ })

			assert.False(t, s.Update(snap(models.StatusRunning)))
			assert.False(t, s.Update(snap(models.StatusCompleted)))
			assert.Same(t, final, s.Current())
			assert.Zero(t, notified)
		})
	}
}

func TestStatusesObservedAreNonDecreasing(t *testing.T) {
	s := New("abc123")
	var seen []models.Status
	s.Subscribe(func(sc *models.Scan) { seen = append(seen, sc.Status) })

	feed := []models.Status{
		models.StatusPending, models.StatusRunning, models.StatusPending,
		models.StatusRunning, models.StatusCompleted, models.StatusRunning, models.StatusFailed,
	}
	for _, st := range feed {
		s.Update(snap(st))
	}

	assert.Equal(t, []models.Status{
		models.StatusPending, models.StatusRunning, models.StatusRunning, models.StatusCompleted,
	}, seen)
	for i := 1; i < len(seen); i++ {
		assert.LessOrEqual(t, seen[i-1].Rank(), seen[i].Rank())
	}
}

func TestUpdateRejectsNilAndForeignSnapshots(t *testing.T) {
	s := New("abc123")
	assert.False(t, s.Update(nil))
	assert.False(t, s.Update(&models.Scan{ID: "other", Status: models.StatusRunning}))
	assert.Nil(t, s.Current())
}

func TestSubscribeOrderAndUnsubscribe(t *testing.T) {
	s := New("abc123")
	var calls []string
	unsubA := s.Subscribe(func(*models.Scan) { calls = append(calls, "a") })
	s.Subscribe(func(*models.Scan) { calls = append(calls, "b") })

	s.Update(snap(models.StatusPending))
	unsubA()
	unsubA()
	s.Update(snap(models.StatusRunning))

	assert.Equal(t, []string{"a", "b", "b"}, calls)
}

func TestSubscriberMayReadStore(t *testing.T) {
	s := New("abc123")
	var got *models.Scan
	s.Subscribe(func(*models.Scan) { got = s.Current() })
	want := snap(models.StatusRunning)
	s.Update(want)
	assert.Same(t, want, got)
}
