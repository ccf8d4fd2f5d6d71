package domain

import (
	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
)

// contactNamespace scopes the name-based UUIDs of imported contacts.
var contactNamespace = uuid.MustParse("6f1d3c52-8a0e-5b7e-9c4d-2b1a0e7f3d58")

// NormalizedContact is a provider-neutral vCard built from one profile.
type NormalizedContact struct {
	ID       uuid.UUID
	Provider Provider
	SourceID string
	Card     vcard.Card
}

// ContactID derives the stable contact identifier for a provider profile.
// The same profile always maps to the same id.
func ContactID(provider Provider, sourceID string) uuid.UUID {
	return uuid.NewSHA1(contactNamespace, []byte(string(provider)+":"+sourceID))
}
