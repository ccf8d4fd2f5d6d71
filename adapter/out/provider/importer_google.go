package provider

import (
	"context"
	"strings"

	"importer_server/core/port/out"

	"github.com/sony/gobreaker"
	"google.golang.org/api/people/v1"
)

const (
	googleSelf           = "people/me"
	googleListFields     = "metadata"
	googleLookupFields   = "names,nicknames,emailAddresses,phoneNumbers,photos,urls,biographies,addresses,organizations"
	googleConnectionPage = 1000
)

// GoogleClient reads the user's Google contacts through the People API.
type GoogleClient struct {
	svc *people.Service
	cb  *gobreaker.CircuitBreaker
}

var _ out.SocialGraphClient = (*GoogleClient)(nil)

// ListConnections maps the People API page token onto the shared cursor
// sentinels: the first page is CursorStart and an empty next token is CursorEnd.
func (c *GoogleClient) ListConnections(ctx context.Context, cursor string) (*out.ConnectionPage, error) {
	call := c.svc.People.Connections.List(googleSelf).
		PersonFields(googleListFields).
		PageSize(googleConnectionPage).
		Context(ctx)
	if cursor != out.CursorStart {
		call = call.PageToken(cursor)
	}

	var resp *people.ListConnectionsResponse
	err := execute(c.cb, func() error {
		var err error
		resp, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	page := &out.ConnectionPage{NextCursor: resp.NextPageToken}
	if page.NextCursor == "" {
		page.NextCursor = out.CursorEnd
	}
	for _, p := range resp.Connections {
		if p.ResourceName != "" {
			page.IDs = append(page.IDs, p.ResourceName)
		}
	}
	return page, nil
}

// LookupBatch fetches full person records for resource names.
func (c *GoogleClient) LookupBatch(ctx context.Context, ids []string) ([]*out.ProfileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resp *people.GetPeopleResponse
	err := execute(c.cb, func() error {
		var err error
		resp, err = c.svc.People.GetBatchGet().
			ResourceNames(ids...).
			PersonFields(googleLookupFields).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	records := make([]*out.ProfileRecord, 0, len(resp.Responses))
	for _, r := range resp.Responses {
		if r.Person == nil {
			continue
		}
		records = append(records, personToRecord(r.Person))
	}
	return records, nil
}

func personToRecord(p *people.Person) *out.ProfileRecord {
	rec := &out.ProfileRecord{ID: p.ResourceName}

	if n := primaryName(p.Names); n != nil {
		rec.DisplayName = n.DisplayName
		rec.GivenName = n.GivenName
		rec.FamilyName = n.FamilyName
	}
	if len(p.Nicknames) > 0 {
		rec.ScreenName = p.Nicknames[0].Value
	}
	for _, e := range p.EmailAddresses {
		if e.Value != "" {
			rec.Emails = append(rec.Emails, e.Value)
		}
	}
	for _, ph := range p.PhoneNumbers {
		if ph.Value != "" {
			rec.Phones = append(rec.Phones, ph.Value)
		}
	}
	for _, photo := range p.Photos {
		// Skip the generated initials avatar.
		if photo.Url != "" && !photo.Default {
			rec.PhotoURL = photo.Url
			break
		}
	}
	for _, u := range p.Urls {
		if u.Value != "" {
			rec.URLs = append(rec.URLs, u.Value)
		}
	}
	if len(p.Biographies) > 0 {
		rec.Note = p.Biographies[0].Value
	}
	if len(p.Addresses) > 0 {
		rec.Location = strings.ReplaceAll(p.Addresses[0].FormattedValue, "\n", ", ")
	}
	if len(p.Organizations) > 0 {
		rec.Organization = p.Organizations[0].Name
		rec.Title = p.Organizations[0].Title
	}
	return rec
}

func primaryName(names []*people.Name) *people.Name {
	for _, n := range names {
		if n.Metadata != nil && n.Metadata.Primary {
			return n
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return nil
}
