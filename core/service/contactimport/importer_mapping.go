package contactimport

import (
	"bytes"
	"strings"

	"importer_server/core/domain"
	"importer_server/core/port/out"

	"github.com/emersion/go-vcard"
)

const (
	productID          = "-//importer_server//contact import//EN"
	fieldSocialProfile = "X-SOCIALPROFILE"
)

// ToContact maps a provider profile to a vCard 4.0 contact. It is pure: the
// same record always yields the same contact.
func ToContact(provider domain.Provider, p *out.ProfileRecord) *domain.NormalizedContact {
	id := domain.ContactID(provider, p.ID)
	card := make(vcard.Card)

	card.SetValue(vcard.FieldVersion, "4.0")
	card.SetValue(vcard.FieldProductID, productID)
	card.SetValue(vcard.FieldUID, id.String())
	card.SetValue(vcard.FieldFormattedName, formattedName(p))

	if p.GivenName != "" || p.FamilyName != "" {
		card.SetName(&vcard.Name{
			Field:      &vcard.Field{},
			GivenName:  p.GivenName,
			FamilyName: p.FamilyName,
		})
	}
	if p.ScreenName != "" {
		card.SetValue(vcard.FieldNickname, p.ScreenName)
	}
	for _, email := range p.Emails {
		card.AddValue(vcard.FieldEmail, email)
	}
	for _, phone := range p.Phones {
		card.AddValue(vcard.FieldTelephone, phone)
	}
	if p.PhotoURL != "" {
		card.SetValue(vcard.FieldPhoto, p.PhotoURL)
	}
	for _, u := range p.URLs {
		card.AddValue(vcard.FieldURL, u)
	}
	if p.Note != "" {
		card.SetValue(vcard.FieldNote, p.Note)
	}
	if p.Location != "" {
		card.AddAddress(&vcard.Address{
			Field:    &vcard.Field{},
			Locality: p.Location,
		})
	}
	if p.Organization != "" {
		card.SetValue(vcard.FieldOrganization, p.Organization)
	}
	if p.Title != "" {
		card.SetValue(vcard.FieldTitle, p.Title)
	}
	if p.ProfileURL != "" {
		card.Add(fieldSocialProfile, &vcard.Field{
			Value:  p.ProfileURL,
			Params: vcard.Params{vcard.ParamType: {string(provider)}},
		})
	}

	return &domain.NormalizedContact{
		ID:       id,
		Provider: provider,
		SourceID: p.ID,
		Card:     card,
	}
}

func formattedName(p *out.ProfileRecord) string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	if name := strings.TrimSpace(p.GivenName + " " + p.FamilyName); name != "" {
		return name
	}
	if p.ScreenName != "" {
		return p.ScreenName
	}
	if len(p.Emails) > 0 {
		return p.Emails[0]
	}
	return p.ID
}

// EncodeCard serializes a card in vCard text form.
func EncodeCard(card vcard.Card) (string, error) {
	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return "", err
	}
	return buf.String(), nil
}
