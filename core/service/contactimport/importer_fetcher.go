package contactimport

import (
	"context"

	"importer_server/core/domain"
	"importer_server/core/port/out"
)

// FetchIdentifiers walks the connection listing from the start cursor and
// returns the collected ids in source order.
//
// Once maxIDs ids are held the listing stops and the first maxIDs-1 are
// returned without requesting another page. Any transport failure discards
// what was collected and is returned as an API client error.
func FetchIdentifiers(ctx context.Context, client out.SocialGraphClient, maxIDs int) ([]string, error) {
	var ids []string
	cursor := out.CursorStart

	for {
		if len(ids) >= maxIDs {
			return ids[:maxIDs-1], nil
		}

		page, err := client.ListConnections(ctx, cursor)
		if err != nil {
			return nil, domain.NewAPIClientError(err, out.StatusCode(err))
		}

		ids = append(ids, page.IDs...)

		if len(ids) >= maxIDs {
			return ids[:maxIDs-1], nil
		}
		// An empty cursor can only come from a misbehaving adapter; stop rather than restart.
		if page.NextCursor == out.CursorEnd || page.NextCursor == "" {
			return ids, nil
		}
		cursor = page.NextCursor
	}
}
