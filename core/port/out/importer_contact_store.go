package out

import (
	"context"

	"github.com/emersion/go-vcard"
)

// ContactStore writes contacts into a user's remote address book.
type ContactStore interface {
	CreateContact(ctx context.Context, addressBookID, contactID string, card vcard.Card) error
}

// ContactStoreFactory binds a store to the credentials of one user.
type ContactStoreFactory interface {
	ForToken(token string) ContactStore
}
