package queue

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCalled    Status = "called"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusStale     Status = "stale"
)

// IsActive reports whether the entry still occupies a position.
func (s Status) IsActive() bool {
	return s == StatusWaiting || s == StatusCalled
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusStale
}

func (s Status) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

type action string

const (
	actionCall     action = "call"
	actionComplete action = "complete"
	actionCancel   action = "cancel"
	actionEvict    action = "evict"
)

// transitions lists the statuses an action may start from.
var transitions = map[action][]Status{
	actionCall:     {StatusWaiting},
	actionComplete: {StatusCalled},
	actionCancel:   {StatusWaiting, StatusCalled},
	actionEvict:    {StatusWaiting},
}

func canTransition(a action, from Status) bool {
	for _, s := range transitions[a] {
		if s == from {
			return true
		}
	}
	return false
}

// Source identifies the channel an entry was admitted through.
type Source string

const (
	SourceKiosk  Source = "kiosk"
	SourceQR     Source = "qr"
	SourcePublic Source = "public"
	SourceStaff  Source = "staff"
)

func (s Source) Valid() bool {
	switch s {
	case SourceKiosk, SourceQR, SourcePublic, SourceStaff:
		return true
	}
	return false
}
