package drive

// ChangeRecord is one entry from the changes feed: either a removal marker
// or a current metadata snapshot for a file.
type ChangeRecord struct {
	FileID  string    `json:"fileId"`
	Removed bool      `json:"removed"`
	File    *FileMeta `json:"file,omitempty"`
}

// FileMeta is the subset of file metadata the sync engine needs.
type FileMeta struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Parents      []string `json:"parents,omitempty"`
	MimeType     string   `json:"mimeType"`
	MD5Checksum  string   `json:"md5Checksum,omitempty"`
	Trashed      bool     `json:"trashed,omitempty"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	Size         int64    `json:"size,string,omitempty"`

	LastModifyingUser *User `json:"lastModifyingUser,omitempty"`
}

// User identifies the last editor of a file.
type User struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// changeList is the wire shape of a changes.list response page.
type changeList struct {
	Changes           []ChangeRecord `json:"changes"`
	NextPageToken     string         `json:"nextPageToken,omitempty"`
	NewStartPageToken string         `json:"newStartPageToken,omitempty"`
}

// fileList is the wire shape of a files.list response page.
type fileList struct {
	Files         []*FileMeta `json:"files"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// Channel describes an active push-notification subscription.
type Channel struct {
	ID         string
	ResourceID string
	Expiration int64 // unix milliseconds
}

// MimeFolder is the MIME type Drive uses for folders.
const MimeFolder = "application/vnd.google-apps.folder"
