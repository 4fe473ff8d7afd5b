package models

import (
	"time"
)

// Staff is a barber/employee who can log in to the staff dashboard.
type Staff struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"` // staff | manager
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Queue is the stored shape of a queue aggregate. Version is the
// optimistic concurrency token and changes on every committed write.
type Queue struct {
	ID                         string `gorm:"type:uuid;primaryKey"`
	LocationID                 string `gorm:"index;not null"`
	Name                       string
	MaxSize                    int          `gorm:"not null"`
	LateClientCapTimeInMinutes int          `gorm:"not null"`
	IsActive                   bool         `gorm:"not null"`
	Version                    int64        `gorm:"not null"`
	Entries                    []QueueEntry `gorm:"foreignKey:QueueID"`
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// QueueEntry rows are never deleted; terminal rows stay for history.
type QueueEntry struct {
	ID              string  `gorm:"type:uuid;primaryKey"`
	QueueID         string  `gorm:"type:uuid;index;not null"`
	Seq             int     `gorm:"not null"` // admission order inside the queue
	CustomerID      *string `gorm:"index"`
	CustomerName    string  `gorm:"not null"`
	Position        int     `gorm:"not null"` // 0 once the entry is terminal
	Status          string  `gorm:"index;not null"`
	Source          string  `gorm:"not null"`
	AssignedStaffID *string
	CancelReason    string
	JoinedAt        time.Time `gorm:"not null"`
	CalledAt        *time.Time
	CompletedAt     *time.Time
	ExitedAt        *time.Time // cancelled or stale
}
