package contactimport

import (
	"context"

	"importer_server/core/domain"
	"importer_server/core/port/out"
	"importer_server/pkg/logger"
)

// Writer creates normalized contacts in the contact store and announces each
// created contact on the event bus.
type Writer struct {
	store       out.ContactStore
	events      out.EventPublisher
	concurrency int
}

func NewWriter(store out.ContactStore, events out.EventPublisher, concurrency int) *Writer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Writer{
		store:       store,
		events:      events,
		concurrency: concurrency,
	}
}

// Write attempts each contact exactly once. Failed creates come back as
// contact client errors; they are not retried.
func (w *Writer) Write(ctx context.Context, job *domain.ImportJob, contacts []*domain.NormalizedContact) (int, []*domain.ImportError) {
	tasks := make([]func(context.Context) (struct{}, error), len(contacts))
	for i, c := range contacts {
		tasks[i] = func(ctx context.Context) (struct{}, error) {
			return struct{}{}, w.writeOne(ctx, job, c)
		}
	}

	created := 0
	var errs []*domain.ImportError
	for _, r := range SettleAll(ctx, w.concurrency, tasks) {
		if r.Err == nil {
			created++
			continue
		}
		if ie, ok := domain.AsImportError(r.Err); ok {
			errs = append(errs, ie)
		} else {
			errs = append(errs, domain.NewContactClientError(r.Err))
		}
	}
	return created, errs
}

func (w *Writer) writeOne(ctx context.Context, job *domain.ImportJob, c *domain.NormalizedContact) error {
	contactID := c.ID.String()

	if err := w.store.CreateContact(ctx, job.AddressBookID, contactID, c.Card); err != nil {
		logger.WithError(err).
			WithFields(map[string]any{"job_id": job.ID.String(), "contact_id": contactID}).
			Error("[Writer] failed to create contact in book %s", job.AddressBookID)
		return domain.NewContactClientError(err)
	}

	// The contact exists now; announce it even if the job is being cancelled.
	w.publishAdded(context.WithoutCancel(ctx), job, c)
	return nil
}

// publishAdded never fails the write; the contact already exists in the store.
func (w *Writer) publishAdded(ctx context.Context, job *domain.ImportJob, c *domain.NormalizedContact) {
	text, err := EncodeCard(c.Card)
	if err != nil {
		logger.WithError(err).Warn("[Writer] failed to encode vcard %s for event", c.ID)
		return
	}

	event := &out.ContactAddedEvent{
		ContactID: c.ID.String(),
		BookID:    job.AddressBookID,
		VCard:     text,
		User:      job.UserID.String(),
	}
	if err := w.events.Publish(ctx, out.TopicContactAdded, event); err != nil {
		logger.WithError(err).Warn("[Writer] failed to publish %s for contact %s", out.TopicContactAdded, c.ID)
	}
}
