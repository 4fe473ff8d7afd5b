package handlers

import (
	"time"
	"waitline/internal/queue"
)

// JoinRequest is the customer data every admission channel accepts
type JoinRequest struct {
	CustomerID       *string `json:"customer_id" example:"cust-42"`
	CustomerName     string  `json:"customer_name" binding:"required" example:"Alex"`
	PreferredStaffID *string `json:"preferred_staff_id,omitempty"`
}

func (r JoinRequest) params(source queue.Source) queue.AdmitParams {
	return queue.AdmitParams{
		CustomerID:       r.CustomerID,
		CustomerName:     r.CustomerName,
		PreferredStaffID: r.PreferredStaffID,
		Source:           source,
	}
}

// QRJoinRequest carries the token scanned from a queue's QR code
type QRJoinRequest struct {
	Token string `json:"token" binding:"required"`
	JoinRequest
}

// EntryResponse describes one ticket in a queue
type EntryResponse struct {
	ID                   string     `json:"id"`
	QueueID              string     `json:"queue_id"`
	CustomerID           *string    `json:"customer_id,omitempty"`
	CustomerName         string     `json:"customer_name"`
	Position             int        `json:"position"`
	Status               string     `json:"status" example:"waiting"`
	Source               string     `json:"source" example:"kiosk"`
	AssignedStaffID      *string    `json:"assigned_staff_id,omitempty"`
	CancelReason         string     `json:"cancel_reason,omitempty"`
	JoinedAt             time.Time  `json:"joined_at"`
	CalledAt             *time.Time `json:"called_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	ExitedAt             *time.Time `json:"exited_at,omitempty"`
	EstimatedWaitMinutes *int       `json:"estimated_wait_minutes,omitempty" example:"30"`
}

func newEntryResponse(e queue.Entry) EntryResponse {
	return EntryResponse{
		ID:              e.ID,
		QueueID:         e.QueueID,
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

// -1 means the wait is unknown, for example when no staff is serving.
func newEntryViewResponse(v queue.EntryView) EntryResponse {
	resp := newEntryResponse(v.Entry)
	wait := v.EstimatedWaitMinutes
	resp.EstimatedWaitMinutes = &wait
	return resp
}

// QueueStatusResponse is the public status board of a queue
type QueueStatusResponse struct {
	QueueID     string          `json:"queue_id"`
	LocationID  string          `json:"location_id"`
	Name        string          `json:"name"`
	IsActive    bool            `json:"is_active"`
	MaxSize     int             `json:"max_size"`
	ActiveStaff int             `json:"active_staff"`
	Entries     []EntryResponse `json:"entries"`
}

// CreateQueueRequest defines a new queue
type CreateQueueRequest struct {
	ID                         string `json:"id,omitempty"`
	LocationID                 string `json:"location_id" binding:"required" example:"downtown"`
	Name                       string `json:"name" example:"Chair 1"`
	MaxSize                    int    `json:"max_size" binding:"required,min=1" example:"10"`
	LateClientCapTimeInMinutes int    `json:"late_client_cap_time_in_minutes" binding:"min=0,max=525600" example:"15"`
}

// QueueResponse describes a queue's settings
type QueueResponse struct {
	ID                         string    `json:"id"`
	LocationID                 string    `json:"location_id"`
	Name                       string    `json:"name"`
	MaxSize                    int       `json:"max_size"`
	LateClientCapTimeInMinutes int       `json:"late_client_cap_time_in_minutes"`
	IsActive                   bool      `json:"is_active"`
	CreatedAt                  time.Time `json:"created_at"`
}

func newQueueResponse(q *queue.Queue) QueueResponse {
	return QueueResponse{
		ID:                         q.ID,
		LocationID:                 q.LocationID,
		Name:                       q.Name,
		MaxSize:                    q.MaxSize,
		LateClientCapTimeInMinutes: q.LateClientCapTimeInMinutes,
		IsActive:                   q.IsActive,
		CreatedAt:                  q.CreatedAt,
	}
}

// SetActiveRequest enables or disables admissions
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// CancelRequest optionally explains a cancellation
type CancelRequest struct {
	Reason string `json:"reason" example:"no show"`
}

// CallNextResponse holds the called entry, or null when nobody is waiting
type CallNextResponse struct {
	Entry *EntryResponse `json:"entry"`
}

// QRTokenResponse is encoded into the QR code shown at the location
type QRTokenResponse struct {
	QueueID   string    `json:"queue_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
