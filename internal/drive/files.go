package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// listFields limits files.list responses to the metadata the initial sync
// consumes.
const listFields = "nextPageToken,files(id,name,parents,mimeType,md5Checksum," +
	"trashed,modifiedTime,size,lastModifyingUser(displayName,emailAddress))"

const listPageSize = 1000

// Download fetches the raw content of a binary file.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"?alt=media", nil)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading download %s: %w", fileID, err)
	}

	return content, nil
}

// Export converts a natively-edited document to the given MIME type and
// returns the result.
func (c *Client) Export(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	q := url.Values{}
	q.Set("mimeType", mimeType)

	path := "/files/" + url.PathEscape(fileID) + "/export?" + q.Encode()

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("exporting %s as %s: %w", fileID, mimeType, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading export %s: %w", fileID, err)
	}

	return content, nil
}

// fileMeta fetches selected metadata fields for a single file.
func (c *Client) fileMeta(ctx context.Context, fileID, fields string) (*FileMeta, error) {
	q := url.Values{}
	q.Set("fields", fields)

	var meta FileMeta
	if err := c.getJSON(ctx, "/files/"+url.PathEscape(fileID)+"?"+q.Encode(), &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// ListChildren returns the non-trashed direct children of a folder,
// following pagination. Used by the initial full sync, which enumerates the
// folder tree instead of consuming the change feed.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]*FileMeta, error) {
	var children []*FileMeta

	pageToken := ""

	for {
		q := url.Values{}
		q.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", folderID))
		q.Set("fields", listFields)
		q.Set("pageSize", strconv.Itoa(listPageSize))

		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page fileList
		if err := c.getJSON(ctx, "/files?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("listing children of %s: %w", folderID, err)
		}

		children = append(children, page.Files...)

		if page.NextPageToken == "" {
			return children, nil
		}

		pageToken = page.NextPageToken
	}
}
