// Package domain defines the persistence models for events, profiles, the
// notification audit log, and the two fan-out aggregates (broadcasts and RSVP
// invites). These types are mapped with GORM and form the core data layer of
// the reminder application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Notified values for Event. The field is monotone: once an event leaves the
// pending (empty) state it never goes back.
const (
	NotifiedPending = ""
	NotifiedYes     = "Yes"
	NotifiedNo      = "No"
)

// Event type discriminators.
const (
	EventTypeDeadline   = "deadline"
	EventTypeRecurrence = "recurrence"
)

// Delivery states for a contact row within a fan-out aggregate. A failed send
// reverts the row to StatusPending so the next tick retries it; there is no
// terminal failed state on contact rows.
const (
	StatusPending    = ""
	StatusProcessing = "processing"
	StatusSent       = "sent"
)

// Notification audit types.
const (
	NotificationEventReminder = "event_reminder"
	NotificationTest          = "test_notification"
	NotificationAIResponse    = "ai_response"
	NotificationRSVPConfirm   = "rsvp_confirmation"
)

// Delivery statuses recorded on Notification audit rows.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Event represents a user's scheduled item. A reminder fires on the
// notification date (EventDate minus DaysToNotify days).
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Title: human-readable event title.
//   - EventDate: calendar date of the event, stored as "2006-01-02".
//   - DaysToNotify: how many days before EventDate the reminder is due.
//   - EventType: "deadline" or "recurrence" (affects message wording only).
//   - UserID: owner; indexed for per-user queries.
//   - Notified: "" (pending), "Yes" (reminder dispatched) or "No" (expired
//     before dispatch). Only the reminder scheduler mutates this field.
type Event struct {
	ID           string         `json:"id"             gorm:"type:char(36);primaryKey"`
	Title        string         `json:"title"          gorm:"type:varchar(255);not null"`
	EventDate    string         `json:"event_date"     gorm:"type:char(10);not null;index"`
	DaysToNotify int            `json:"days_to_notify" gorm:"not null;default:0"`
	EventType    string         `json:"event_type"     gorm:"type:varchar(16);not null;check:event_type IN ('deadline','recurrence')"`
	UserID       string         `json:"user_id"        gorm:"type:varchar(64);not null;index:idx_user_events"`
	Notified     string         `json:"notified"       gorm:"type:varchar(8);not null;default:''"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string { return "events" }

// Date parses EventDate into a time.Time (UTC midnight).
func (e Event) Date() (time.Time, error) {
	return time.Parse("2006-01-02", e.EventDate)
}

// TypeLabel returns the human wording used in outbound messages.
func (e Event) TypeLabel() string {
	if e.EventType == EventTypeRecurrence {
		return "recurring event"
	}
	return "deadline"
}

// Profile maps a user id to the contact details used for WhatsApp delivery.
// The profile id doubles as the user id everywhere else in the schema.
type Profile struct {
	ID          string         `json:"id"           gorm:"type:varchar(64);primaryKey"`
	FullName    string         `json:"full_name"    gorm:"type:varchar(255);not null;default:''"`
	PhoneNumber string         `json:"phone_number" gorm:"type:varchar(32);not null;uniqueIndex:ux_profile_phone"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Notification is an append-only audit record of one outbound attempt,
// successful or not. Rows are never updated after creation.
//
// Fields:
//   - EventID: set for event reminders, nil for test sends and AI replies.
//   - MessageSID: the gateway's message id when the send was accepted.
//   - DeliveryStatus: "sent" or "failed" (outcome of the gateway call).
type Notification struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string         `json:"user_id"         gorm:"type:varchar(64);not null;index:idx_user_notifications"`
	EventID        *string        `json:"event_id"        gorm:"type:char(36)"`
	Type           string         `json:"type"            gorm:"type:varchar(32);not null"`
	Content        string         `json:"content"         gorm:"type:text;not null"`
	PhoneNumber    string         `json:"phone_number"    gorm:"type:varchar(32);not null"`
	MessageSID     *string        `json:"message_sid"     gorm:"type:varchar(64)"`
	DeliveryStatus string         `json:"delivery_status" gorm:"type:varchar(8);not null;check:delivery_status IN ('sent','failed')"`
	SentAt         time.Time      `json:"sent_at"         gorm:"index:idx_user_notifications,priority:2"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications_sent" }

// Broadcast is a message fanned out to many contacts. Status flips to "sent"
// only when every owned BroadcastContact row is "sent"; until then the
// dispatcher picks it up again on every tick.
type Broadcast struct {
	ID        string         `json:"id"      gorm:"type:char(36);primaryKey"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	Status    string         `json:"status"  gorm:"type:varchar(16);not null;default:''"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"       gorm:"index"`
}

// TableName returns the database table name for Broadcast.
func (Broadcast) TableName() string { return "messages" }

// BroadcastContact is one recipient's delivery state within a Broadcast.
// Attempts counts gateway tries including failures, so an operator can tell a
// reverted row apart from one that was never attempted.
type BroadcastContact struct {
	ID          string         `json:"id"            gorm:"type:char(36);primaryKey"`
	BroadcastID string         `json:"message_id"    gorm:"column:message_id;type:char(36);not null;index:idx_broadcast_contacts"`
	Phone       string         `json:"contact_phone" gorm:"column:contact_phone;type:varchar(32);not null"`
	Status      string         `json:"status"        gorm:"type:varchar(16);not null;default:''"`
	Attempts    int            `json:"attempts"      gorm:"not null;default:0"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"             gorm:"index"`

	Broadcast Broadcast `json:"-" gorm:"foreignKey:BroadcastID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for BroadcastContact.
func (BroadcastContact) TableName() string { return "message_contact" }

// Invite is an RSVP invitation fanned out to many contacts, mirroring the
// Broadcast state machine. Replies are matched back to InviteContact rows by
// phone number.
type Invite struct {
	ID        string         `json:"id"      gorm:"type:char(36);primaryKey"`
	Title     string         `json:"title"   gorm:"type:varchar(255);not null;default:''"`
	Message   string         `json:"message" gorm:"type:text;not null;default:''"`
	Status    string         `json:"status"  gorm:"type:varchar(16);not null;default:''"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"       gorm:"index"`
}

// TableName returns the database table name for Invite.
func (Invite) TableName() string { return "rsvp" }

// InviteContact tracks one invitee: InviteStatus is the delivery state
// machine and Response holds the recorded answer ("yes"/"no", empty until the
// invitee replies).
//
// Seq is a monotonically assigned integer used to break ties when one phone
// number holds several outstanding invitations: the newest row wins. It is
// assigned at insert time by the repo layer (SQLite only auto-increments
// integer primary keys, and the primary key here is a UUID).
type InviteContact struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	Seq          int64          `json:"seq"           gorm:"not null;uniqueIndex:ux_invite_contact_seq"`
	InviteID     string         `json:"rsvp_id"       gorm:"column:rsvp_id;type:char(36);not null;index:idx_invite_contacts"`
	Phone        string         `json:"contact_phone" gorm:"column:contact_phone;type:varchar(32);not null;index:idx_invite_phone"`
	InviteStatus string         `json:"invite_status" gorm:"type:varchar(16);not null;default:''"`
	Response     string         `json:"status"        gorm:"type:varchar(8);not null;default:''"`
	Attempts     int            `json:"attempts"      gorm:"not null;default:0"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`

	Invite Invite `json:"-" gorm:"foreignKey:InviteID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for InviteContact.
func (InviteContact) TableName() string { return "rsvp_contact_status" }
