package drive

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// changeFields limits changes.list responses to the metadata the sync
// engine consumes.
const changeFields = "nextPageToken,newStartPageToken," +
	"changes(fileId,removed,file(id,name,parents,mimeType,md5Checksum," +
	"trashed,modifiedTime,size,lastModifyingUser(displayName,emailAddress)))"

// changePageSize is the page size requested from changes.list.
const changePageSize = 1000

// ListChanges fetches all change pages since cursor, following pagination.
// Returns the accumulated records and the cursor to adopt once the batch's
// side effects have been pushed.
func (c *Client) ListChanges(ctx context.Context, cursor string) ([]ChangeRecord, string, error) {
	var records []ChangeRecord

	current := cursor

	for {
		q := url.Values{}
		q.Set("pageToken", current)
		q.Set("fields", changeFields)
		q.Set("spaces", "drive")
		q.Set("includeRemoved", "true")
		q.Set("pageSize", strconv.Itoa(changePageSize))

		var page changeList
		if err := c.getJSON(ctx, "/changes?"+q.Encode(), &page); err != nil {
			return nil, "", fmt.Errorf("listing changes: %w", err)
		}

		records = append(records, page.Changes...)

		if page.NextPageToken == "" {
			newCursor := page.NewStartPageToken
			if newCursor == "" {
				newCursor = current
			}

			c.logger.Debug("change listing complete",
				slog.Int("records", len(records)),
				slog.String("new_cursor", newCursor),
			)

			return records, newCursor, nil
		}

		current = page.NextPageToken
	}
}

// StartPageToken returns a fresh cursor positioned at "now", consuming no
// changes.
func (c *Client) StartPageToken(ctx context.Context) (string, error) {
	var resp struct {
		StartPageToken string `json:"startPageToken"`
	}

	if err := c.getJSON(ctx, "/changes/startPageToken", &resp); err != nil {
		return "", fmt.Errorf("getting start page token: %w", err)
	}

	return resp.StartPageToken, nil
}

// Watch subscribes a webhook address to change push notifications anchored
// at cursor. The returned channel must be stored so inbound notifications
// can be validated and the channel later stopped.
func (c *Client) Watch(ctx context.Context, address, cursor string) (*Channel, error) {
	channelID := uuid.NewString()

	body := map[string]string{
		"id":      channelID,
		"type":    "web_hook",
		"address": address,
	}

	q := url.Values{}
	q.Set("pageToken", cursor)
	q.Set("fields", "resourceId,expiration")

	var resp struct {
		ResourceID string `json:"resourceId"`
		Expiration string `json:"expiration"`
	}

	if err := c.postJSON(ctx, "/changes/watch?"+q.Encode(), body, &resp); err != nil {
		return nil, fmt.Errorf("creating watch channel: %w", err)
	}

	expiration, err := strconv.ParseInt(resp.Expiration, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing watch expiration %q: %w", resp.Expiration, err)
	}

	c.logger.Info("watch channel created",
		slog.String("channel_id", channelID),
		slog.Int64("expiration", expiration),
	)

	return &Channel{
		ID:         channelID,
		ResourceID: resp.ResourceID,
		Expiration: expiration,
	}, nil
}

// StopWatch tears down a push-notification channel.
func (c *Client) StopWatch(ctx context.Context, channelID, resourceID string) error {
	body := map[string]string{
		"id":         channelID,
		"resourceId": resourceID,
	}

	if err := c.postJSON(ctx, "/channels/stop", body, nil); err != nil {
		return fmt.Errorf("stopping watch channel %s: %w", channelID, err)
	}

	c.logger.Info("watch channel stopped", slog.String("channel_id", channelID))

	return nil
}
