package out

import (
	"context"
	"time"
)

// Event topics.
const (
	TopicContactAdded = "contacts:contact:add"
)

// Job streams.
const (
	StreamContactImport = "contact:import"
)

// EventPublisher publishes domain events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// ContactAddedEvent is published once per contact written to the store.
type ContactAddedEvent struct {
	ContactID string `json:"contact_id"`
	BookID    string `json:"book_id"`
	VCard     string `json:"vcard"`
	User      string `json:"user"`
}

// ImportFailedEvent is published once per failed job on the topic named by Type.
type ImportFailedEvent struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Account  string `json:"account"`
	User     string `json:"user"`
	JobID    string `json:"job_id"`
}

// ImportJobMessage is the payload enqueued on the import stream.
type ImportJobMessage struct {
	JobID         string    `json:"job_id"`
	UserID        string    `json:"user_id"`
	Provider      string    `json:"provider"`
	AccountID     int64     `json:"account_id"`
	AddressBookID string    `json:"address_book_id"`
	StoreToken    string    `json:"store_token"` // encrypted
	CreatedAt     time.Time `json:"created_at"`
}

// JobProducer enqueues import jobs for the worker role.
type JobProducer interface {
	PublishImportJob(ctx context.Context, job *ImportJobMessage) error
}

