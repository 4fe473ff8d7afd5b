package queue

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestQueue(t *testing.T, maxSize, lateCap int) *Queue {
	t.Helper()
	q, err := New(NewQueueParams{LocationID: "loc-1", Name: "Chair 1", MaxSize: maxSize, LateClientCapTimeInMinutes: lateCap}, t0)
	require.NoError(t, err)
	return q
}

func admit(t *testing.T, q *Queue, name string) *Entry {
	t.Helper()
	e, err := q.AddCustomerToQueue(AdmitParams{CustomerName: name}, t0)
	require.NoError(t, err)
	return e
}

func strPtr(s string) *string { return &s }

func activeNames(q *Queue) []string {
	var names []string
	for _, e := range q.ActiveEntries() {
		names = append(names, e.CustomerName)
	}
	return names
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params NewQueueParams
	}{
		{"missing location", NewQueueParams{MaxSize: 5}},
		{"zero capacity", NewQueueParams{LocationID: "loc", MaxSize: 0}},
		{"negative capacity", NewQueueParams{LocationID: "loc", MaxSize: -2}},
		{"negative late cap", NewQueueParams{LocationID: "loc", MaxSize: 2, LateClientCapTimeInMinutes: -1}},
		{"late cap above one year", NewQueueParams{LocationID: "loc", MaxSize: 2, LateClientCapTimeInMinutes: MaxLateClientCapMinutes + 1}},
		{"late cap overflowing a duration", NewQueueParams{LocationID: "loc", MaxSize: 2, LateClientCapTimeInMinutes: 200_000_000}},
		{"id that is not a uuid", NewQueueParams{ID: "chair-1", LocationID: "loc", MaxSize: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params, t0)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	q, err := New(NewQueueParams{LocationID: "loc", MaxSize: 2}, t0)
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.True(t, q.IsActive)
}

func TestNew_KeepsGivenUUID(t *testing.T) {
	id := "0b7f4a8e-5d2c-4e1f-9c3a-6d8e2f1a7b90"
	q, err := New(NewQueueParams{ID: " " + id + " ", LocationID: "loc", MaxSize: 2, LateClientCapTimeInMinutes: MaxLateClientCapMinutes}, t0)
	require.NoError(t, err)
	assert.Equal(t, id, q.ID)
}

func TestAddCustomerToQueue_AppendsAtBack(t *testing.T) {
	q := newTestQueue(t, 10, 15)

	a := admit(t, q, "A")
	b, err := q.AddCustomerToQueue(AdmitParams{
		CustomerID:       strPtr("cust-b"),
		CustomerName:     "  B  ",
		PreferredStaffID: strPtr("barber-2"),
		Source:           SourceKiosk,
	}, t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)
	assert.Equal(t, "B", b.CustomerName)
	assert.Equal(t, StatusWaiting, b.Status)
	assert.Equal(t, SourceKiosk, b.Source)
	assert.Equal(t, SourcePublic, a.Source)
	assert.Equal(t, "barber-2", *b.AssignedStaffID)
	assert.Equal(t, t0.Add(time.Minute), b.JoinedAt)
	assert.Equal(t, q.ID, b.QueueID)
	assert.Equal(t, 2, b.Seq)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAddCustomerToQueue_Rejections(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		q := newTestQueue(t, 2, 15)
		_, err := q.AddCustomerToQueue(AdmitParams{CustomerName: "   "}, t0)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Empty(t, q.Entries)
	})

	t.Run("unknown source", func(t *testing.T) {
		q := newTestQueue(t, 2, 15)
		_, err := q.AddCustomerToQueue(AdmitParams{CustomerName: "A", Source: "fax"}, t0)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("disabled queue", func(t *testing.T) {
		q := newTestQueue(t, 2, 15)
		q.SetActive(false)
		_, err := q.AddCustomerToQueue(AdmitParams{CustomerName: "A"}, t0)
		assert.ErrorIs(t, err, ErrQueueInactive)
	})

	t.Run("duplicate customer", func(t *testing.T) {
		q := newTestQueue(t, 5, 15)
		_, err := q.AddCustomerToQueue(AdmitParams{CustomerID: strPtr("c-1"), CustomerName: "A"}, t0)
		require.NoError(t, err)
		_, err = q.AddCustomerToQueue(AdmitParams{CustomerID: strPtr("c-1"), CustomerName: "A again"}, t0)
		assert.ErrorIs(t, err, ErrDuplicateEntry)
		assert.Equal(t, 1, q.ActiveCount())
	})

	t.Run("anonymous customers never collide", func(t *testing.T) {
		q := newTestQueue(t, 5, 15)
		admit(t, q, "Walk-in")
		admit(t, q, "Walk-in")
		_, err := q.AddCustomerToQueue(AdmitParams{CustomerID: strPtr(" "), CustomerName: "Walk-in"}, t0)
		require.NoError(t, err)
		assert.Equal(t, 3, q.ActiveCount())
	})
}

func TestAddCustomerToQueue_DuplicateAllowedAfterTerminal(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	first, err := q.AddCustomerToQueue(AdmitParams{CustomerID: strPtr("c-1"), CustomerName: "A"}, t0)
	require.NoError(t, err)
	_, err = q.CancelEntry(first.ID, "changed mind", t0)
	require.NoError(t, err)

	second, err := q.AddCustomerToQueue(AdmitParams{CustomerID: strPtr("c-1"), CustomerName: "A"}, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)
}

func TestCapacityScenario(t *testing.T) {
	q := newTestQueue(t, 2, 15)
	a := admit(t, q, "A")
	b := admit(t, q, "B")
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)

	_, err := q.AddCustomerToQueue(AdmitParams{CustomerName: "C"}, t0)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = q.CancelEntry(a.ID, "", t0)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Position)

	c, err := q.AddCustomerToQueue(AdmitParams{CustomerName: "C"}, t0)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Position)
	assert.NoError(t, q.CheckInvariants())
}

func TestCallNext(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	a := admit(t, q, "A")
	b := admit(t, q, "B")

	called, err := q.CallNext("barber-1", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, a.ID, called.ID)
	assert.Equal(t, StatusCalled, called.Status)
	assert.Equal(t, "barber-1", *called.AssignedStaffID)
	assert.Equal(t, t0.Add(time.Minute), *called.CalledAt)
	assert.Equal(t, 1, called.Position, "called entries keep their position")

	called, err = q.CallNext("barber-2", t0)
	require.NoError(t, err)
	assert.Equal(t, b.ID, called.ID)

	_, err = q.CallNext("barber-1", t0)
	assert.ErrorIs(t, err, ErrEmptyQueue)

	_, err = q.CallNext("", t0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCompleteEntry(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	a := admit(t, q, "A")
	b := admit(t, q, "B")
	c := admit(t, q, "C")

	_, err := q.CompleteEntry(b.ID, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition, "waiting entries can not be completed")

	_, err = q.CallNext("barber-1", t0)
	require.NoError(t, err)
	done, err := q.CompleteEntry(a.ID, t0.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, t0.Add(20*time.Minute), *done.CompletedAt)
	assert.Equal(t, 0, done.Position)
	assert.Equal(t, 1, b.Position)
	assert.Equal(t, 2, c.Position)

	_, err = q.CompleteEntry(a.ID, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = q.CompleteEntry("nope", t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelEntry(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	a := admit(t, q, "A")
	admit(t, q, "B")
	admit(t, q, "C")

	_, err := q.CallNext("barber-1", t0)
	require.NoError(t, err)
	cancelled, err := q.CancelEntry(a.ID, " no show ", t0.Add(time.Minute))
	require.NoError(t, err, "called entries can be cancelled")
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "no show", cancelled.CancelReason)
	assert.NotNil(t, cancelled.ExitedAt)
	assert.Equal(t, []string{"B", "C"}, activeNames(q))

	_, err = q.CancelEntry(a.ID, "", t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = q.CancelEntry("missing", "", t0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenumbering_PreservesRelativeOrder(t *testing.T) {
	for k := 1; k <= 5; k++ {
		t.Run(fmt.Sprintf("remove position %d of 5", k), func(t *testing.T) {
			q := newTestQueue(t, 5, 15)
			var entries []*Entry
			for _, n := range []string{"A", "B", "C", "D", "E"} {
				entries = append(entries, admit(t, q, n))
			}
			removed := entries[k-1]
			_, err := q.CancelEntry(removed.ID, "", t0)
			require.NoError(t, err)

			var want []string
			for _, e := range entries {
				if e != removed {
					want = append(want, e.CustomerName)
				}
			}
			assert.Equal(t, want, activeNames(q))
			for i, e := range q.ActiveEntries() {
				assert.Equal(t, i+1, e.Position)
			}
		})
	}
}

func TestEvictStale(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	called := admit(t, q, "A")
	waiting := admit(t, q, "B")
	fresh, err := q.AddCustomerToQueue(AdmitParams{CustomerName: "C"}, t0.Add(10*time.Minute))
	require.NoError(t, err)

	_, err = q.CallNext("barber-1", t0)
	require.NoError(t, err)

	now := t0.Add(16 * time.Minute)
	evicted := q.EvictStale(now)
	require.Len(t, evicted, 1)
	assert.Equal(t, waiting.ID, evicted[0].ID)
	assert.Equal(t, StatusStale, waiting.Status)
	assert.Equal(t, now, *waiting.ExitedAt)
	assert.Equal(t, StatusCalled, called.Status, "called entries are not stale-eligible")
	assert.Equal(t, 1, called.Position)
	assert.Equal(t, 2, fresh.Position)

	assert.Empty(t, q.EvictStale(now), "second sweep must be a no-op")
	assert.NoError(t, q.CheckInvariants())
}

func TestEvictStale_Boundary(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	e := admit(t, q, "A")

	assert.Empty(t, q.EvictStale(t0.Add(15*time.Minute)), "exactly at the cap is not late")

	evicted := q.EvictStale(t0.Add(16 * time.Minute))
	require.Len(t, evicted, 1)
	assert.Equal(t, e.ID, evicted[0].ID)

	// Admission is possible again after the slot is freed.
	next := admit(t, q, "B")
	assert.Equal(t, 1, next.Position)
}

func TestEvictStale_DisabledCap(t *testing.T) {
	q := newTestQueue(t, 5, 0)
	admit(t, q, "A")
	assert.Empty(t, q.EvictStale(t0.Add(24*time.Hour)))
}

func TestEvictStale_HugeCapEvictsNobody(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	admit(t, q, "A")
	// stored rows are not re-validated by New
	q.LateClientCapTimeInMinutes = 200_000_000

	assert.Empty(t, q.EvictStale(t0.Add(time.Minute)))
	assert.Empty(t, q.EvictStale(t0.Add(365*24*time.Hour)))
	assert.Equal(t, []string{"A"}, activeNames(q))
}

func TestRemove_RollsBackOnBrokenInvariant(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	a := admit(t, q, "A")
	b := admit(t, q, "B")
	admit(t, q, "C")
	// three active entries no longer fit, so any removal leaves two > 1
	q.MaxSize = 1

	_, err := q.CancelEntry(a.ID, "no show", t0.Add(time.Minute))
	require.ErrorIs(t, err, ErrCorruptState)

	assert.Equal(t, StatusWaiting, a.Status)
	assert.Empty(t, a.CancelReason)
	assert.Nil(t, a.ExitedAt)
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)
	assert.Equal(t, []string{"A", "B", "C"}, activeNames(q))
	assert.Len(t, q.Pending(), 3)
}

func TestPending_TracksChangesUntilCommitted(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	a := admit(t, q, "A")
	b := admit(t, q, "B")
	_, err := q.CallNext("barber-1", t0)
	require.NoError(t, err)
	_, err = q.CompleteEntry(a.ID, t0.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, []*Entry{a, b}, q.Pending(), "completed entry was changed in this operation")

	q.Committed()
	assert.Equal(t, []*Entry{b}, q.Pending(), "history is not rewritten once committed")

	_, err = q.CancelEntry(b.ID, "", t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []*Entry{b}, q.Pending())

	q.Committed()
	assert.Empty(t, q.Pending())
}

func TestCloseDay(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	a := admit(t, q, "A")
	admit(t, q, "B")
	_, err := q.CallNext("barber-1", t0)
	require.NoError(t, err)
	_, err = q.CompleteEntry(a.ID, t0)
	require.NoError(t, err)
	admit(t, q, "C")

	closed := q.CloseDay(t0.Add(8 * time.Hour))
	assert.Len(t, closed, 2)
	for _, e := range closed {
		assert.Equal(t, StatusCancelled, e.Status)
		assert.Equal(t, ReasonDayClosed, e.CancelReason)
	}
	assert.Equal(t, 0, q.ActiveCount())
	assert.Equal(t, StatusCompleted, a.Status)
	assert.Empty(t, q.CloseDay(t0.Add(8*time.Hour)))
}

func TestCheckInvariants_DetectsCorruption(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	admit(t, q, "A")
	b := admit(t, q, "B")

	b.Position = 3
	assert.ErrorIs(t, q.CheckInvariants(), ErrCorruptState)

	b.Position = 1
	assert.ErrorIs(t, q.CheckInvariants(), ErrCorruptState)

	b.Position = 2
	b.Status = "lost"
	assert.ErrorIs(t, q.CheckInvariants(), ErrCorruptState)
}

func TestClone_IsDeep(t *testing.T) {
	q := newTestQueue(t, 5, 15)
	e, err := q.AddCustomerToQueue(AdmitParams{CustomerID: strPtr("c-1"), CustomerName: "A"}, t0)
	require.NoError(t, err)

	c := q.Clone()
	*c.Entries[0].CustomerID = "c-2"
	c.Entries[0].Position = 9
	_, err = c.CallNext("barber-1", t0)
	require.NoError(t, err)

	assert.Equal(t, "c-1", *e.CustomerID)
	assert.Equal(t, 1, e.Position)
	assert.Equal(t, StatusWaiting, e.Status)
}

// Random operation sequences must never break the invariants.
func TestInvariants_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		q := newTestQueue(t, 6, 20)
		now := t0
		for step := 0; step < 200; step++ {
			now = now.Add(time.Duration(rng.Intn(4)) * time.Minute)
			switch rng.Intn(5) {
			case 0:
				var id *string
				if rng.Intn(2) == 0 {
					id = strPtr(fmt.Sprintf("c-%d", rng.Intn(8)))
				}
				_, _ = q.AddCustomerToQueue(AdmitParams{CustomerID: id, CustomerName: "X"}, now)
			case 1:
				_, _ = q.CallNext("barber", now)
			case 2:
				if len(q.Entries) > 0 {
					_, _ = q.CompleteEntry(q.Entries[rng.Intn(len(q.Entries))].ID, now)
				}
			case 3:
				if len(q.Entries) > 0 {
					_, _ = q.CancelEntry(q.Entries[rng.Intn(len(q.Entries))].ID, "", now)
				}
			case 4:
				q.EvictStale(now)
			}
			require.NoError(t, q.CheckInvariants(), "run %d step %d", run, step)
			require.LessOrEqual(t, q.ActiveCount(), q.MaxSize)
		}
	}
}
