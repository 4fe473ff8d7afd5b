package storage

import (
	"waitline/internal/models"
	"waitline/internal/queue"
)

func toQueueRecord(q *queue.Queue) models.Queue {
	rec := models.Queue{
		ID:                         q.ID,
		LocationID:                 q.LocationID,
		Name:                       q.Name,
		MaxSize:                    q.MaxSize,
		LateClientCapTimeInMinutes: q.LateClientCapTimeInMinutes,
		IsActive:                   q.IsActive,
		Version:                    q.Version,
		CreatedAt:                  q.CreatedAt,
		Entries:                    make([]models.QueueEntry, 0, len(q.Entries)),
	}
	for _, e := range q.Entries {
		rec.Entries = append(rec.Entries, toEntryRecord(e))
	}
	return rec
}

func toEntryRecords(entries []*queue.Entry) []models.QueueEntry {
	recs := make([]models.QueueEntry, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, toEntryRecord(e))
	}
	return recs
}

func toEntryRecord(e *queue.Entry) models.QueueEntry {
	return models.QueueEntry{
		ID:              e.ID,
		QueueID:         e.QueueID,
		Seq:             e.Seq,
		CustomerID:      e.CustomerID,
		CustomerName:    e.CustomerName,
		Position:        e.Position,
		Status:          string(e.Status),
		Source:          string(e.Source),
		AssignedStaffID: e.AssignedStaffID,
		CancelReason:    e.CancelReason,
		JoinedAt:        e.JoinedAt,
		CalledAt:        e.CalledAt,
		CompletedAt:     e.CompletedAt,
		ExitedAt:        e.ExitedAt,
	}
}

func fromQueueRecord(rec models.Queue) *queue.Queue {
	q := &queue.Queue{
		ID:                         rec.ID,
		LocationID:                 rec.LocationID,
		Name:                       rec.Name,
		MaxSize:                    rec.MaxSize,
		LateClientCapTimeInMinutes: rec.LateClientCapTimeInMinutes,
		IsActive:                   rec.IsActive,
		Version:                    rec.Version,
		CreatedAt:                  rec.CreatedAt,
		Entries:                    make([]*queue.Entry, 0, len(rec.Entries)),
	}
	for _, e := range rec.Entries {
		entry := fromEntryRecord(e)
		q.Entries = append(q.Entries, &entry)
	}
	return q
}

func fromEntryRecord(rec models.QueueEntry) queue.Entry {
	return queue.Entry{
		ID:              rec.ID,
		QueueID:         rec.QueueID,
		Seq:             rec.Seq,
		CustomerID:      rec.CustomerID,
		CustomerName:    rec.CustomerName,
		Position:        rec.Position,
		Status:          queue.Status(rec.Status),
		Source:          queue.Source(rec.Source),
		AssignedStaffID: rec.AssignedStaffID,
		CancelReason:    rec.CancelReason,
		JoinedAt:        rec.JoinedAt,
		CalledAt:        rec.CalledAt,
		CompletedAt:     rec.CompletedAt,
		ExitedAt:        rec.ExitedAt,
	}
}
