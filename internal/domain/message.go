package domain

import (
	"time"
)

type MessageStatus int

const (
	StatusPending MessageStatus = iota
	StatusScheduled
	StatusSending
	StatusSent
	StatusPartial
	StatusFailed
	StatusCancelled
)

type OutcomeStatus int

const (
	OutcomePending OutcomeStatus = iota
	OutcomeSuccess
	OutcomeFailed
)

// Message is the persisted record of one submitted campaign send.
// Message.ID doubles as the dispatch job id for its scheduled timer.
type Message struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID     string     `gorm:"type:varchar(64);index" json:"owner_id"`
	Content     string     `gorm:"type:varchar(4096);not null" json:"content"`
	GroupFanout bool       `json:"group_fanout"`
	Status      int        `gorm:"type:int;not null" json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`

	Recipients []RecipientOutcome `gorm:"foreignKey:MessageID" json:"recipients"`
}

// RecipientOutcome tracks one target of a message from acceptance
// through its final send outcome.
type RecipientOutcome struct {
	ID         int        `gorm:"primaryKey" json:"id"`
	MessageID  string     `gorm:"type:varchar(36);index;not null" json:"message_id"`
	Address    string     `gorm:"type:varchar(64);not null" json:"address"`
	Kind       string     `gorm:"type:varchar(16)" json:"kind"`
	Outcome    int        `gorm:"type:int;not null" json:"outcome"`
	DeliveryID string     `gorm:"type:varchar(64)" json:"delivery_id,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

// Contact is an entry of the caller's address book used for
// contact-id recipient resolution.
type Contact struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID     string `gorm:"type:varchar(64);index" json:"owner_id"`
	DisplayName string `gorm:"type:varchar(128)" json:"display_name"`
	Address     string `gorm:"type:varchar(64);not null" json:"address"`
}

// Group is a messaging group the transport can fan a message out to.
type Group struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID     string `gorm:"type:varchar(64);index" json:"owner_id"`
	DisplayName string `gorm:"type:varchar(128)" json:"display_name"`
	Address     string `gorm:"type:varchar(64);not null" json:"address"`
}
