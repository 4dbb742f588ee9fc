package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/drivegit/internal/drive"
	"github.com/tonimelisma/drivegit/internal/state"
)

func newTestClassifier(meta *fakeMeta, store *fakeStore) *Classifier {
	return NewClassifier(meta, store, "docs", testLogger())
}

func alice() *drive.User {
	return &drive.User{DisplayName: "Alice", EmailAddress: "alice@example.com"}
}

func TestClassify_RemovedUntrackedIsIgnored(t *testing.T) {
	t.Parallel()

	cl := newTestClassifier(&fakeMeta{}, newFakeStore())

	c, err := cl.Classify(context.Background(), drive.ChangeRecord{FileID: "f1", Removed: true})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestClassify_RemovedTrackedIsDelete(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.files["f1"] = &state.TrackedFile{
		FileID:          "f1",
		Path:            "docs/old.txt",
		LastAuthorName:  "Bob",
		LastAuthorEmail: "bob@example.com",
	}

	cl := newTestClassifier(&fakeMeta{}, store)

	c, err := cl.Classify(context.Background(), drive.ChangeRecord{FileID: "f1", Removed: true})
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, ActionDelete, c.Action)
	assert.Equal(t, "docs/old.txt", c.OldPath)
	assert.Equal(t, "Bob", c.AuthorName, "delete attribution falls back to the last tracked author")
}

func TestClassify_TrashedTrackedIsDelete(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.files["f1"] = &state.TrackedFile{FileID: "f1", Path: "docs/a.txt"}

	cl := newTestClassifier(&fakeMeta{}, store)

	c, err := cl.Classify(context.Background(), drive.ChangeRecord{
		FileID: "f1",
		File:   &drive.FileMeta{ID: "f1", Name: "a.txt", Trashed: true, LastModifyingUser: alice()},
	})
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, ActionDelete, c.Action)
	assert.Equal(t, "Alice", c.AuthorName)
}

func TestClassify_FolderIsIgnored(t *testing.T) {
	t.Parallel()

	cl := newTestClassifier(&fakeMeta{}, newFakeStore())

	c, err := cl.Classify(context.Background(), drive.ChangeRecord{
		FileID: "d1",
		File:   &drive.FileMeta{ID: "d1", Name: "Reports", MimeType: drive.MimeFolder},
	})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestClassify_MovedOutside(t *testing.T) {
	t.Parallel()

	meta := &fakeMeta{outside: map[string]bool{"f1": true, "f2": true}}

	store := newFakeStore()
	store.files["f1"] = &state.TrackedFile{FileID: "f1", Path: "docs/a.txt"}

	cl := newTestClassifier(meta, store)
	ctx := context.Background()

	// Tracked file moved out becomes a delete.
	c, err := cl.Classify(ctx, drive.ChangeRecord{
		FileID: "f1",
		File:   &drive.FileMeta{ID: "f1", Name: "a.txt"},
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, ActionDelete, c.Action)

	// Untracked file outside the folder is ignored.
	c, err = cl.Classify(ctx, drive.ChangeRecord{
		FileID: "f2",
		File:   &drive.FileMeta{ID: "f2", Name: "b.txt"},
	})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestClassify_ExcludedIsIgnored(t *testing.T) {
	t.Parallel()

	meta := &fakeMeta{excluded: map[string]bool{"Drafts/a.txt": true}}
	cl := newTestClassifier(meta, newFakeStore())

	c, err := cl.Classify(context.Background(), drive.ChangeRecord{
		FileID: "f1",
		File:   &drive.FileMeta{ID: "f1", Name: "Drafts/a.txt"},
	})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestClassify_SkipRuleIsIgnored(t *testing.T) {
	t.Parallel()

	meta := &fakeMeta{skip: map[string]string{"f1": "skipped extension .zip"}}
	cl := newTestClassifier(meta, newFakeStore())

	c, err := cl.Classify(context.Background(), drive.ChangeRecord{
		FileID: "f1",
		File:   &drive.FileMeta{ID: "f1", Name: "bundle.zip"},
	})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestClassify_UntrackedIsAdd(t *testing.T) {
	t.Parallel()

	cl := newTestClassifier(&fakeMeta{}, newFakeStore())

	c, err := cl.Classify(context.Background(), drive.ChangeRecord{
		FileID: "f1",
		File: &drive.FileMeta{
			ID: "f1", Name: "report.docx", MD5Checksum: "abc",
			LastModifyingUser: alice(),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, ActionAdd, c.Action)
	assert.Equal(t, "docs/report.docx", c.NewPath)
	assert.Equal(t, "Alice", c.AuthorName)
	assert.Equal(t, "alice@example.com", c.AuthorEmail)
}

func TestClassify_PathChanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		newName     string
		newMD5      string
		wantAction  Action
		wantContent bool
	}{
		{"name change is rename", "renamed.txt", "abc", ActionRename, false},
		{"same name is move", "a.txt", "abc", ActionMove, false},
		{"rename with new content", "renamed.txt", "xyz", ActionRename, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			store.files["f1"] = &state.TrackedFile{
				FileID: "f1", Name: "a.txt", Path: "docs/a.txt", MD5: "abc",
			}

			meta := &fakeMeta{resolved: map[string]string{"f1": "moved/" + tt.newName}}
			cl := newTestClassifier(meta, store)

			c, err := cl.Classify(context.Background(), drive.ChangeRecord{
				FileID: "f1",
				File:   &drive.FileMeta{ID: "f1", Name: tt.newName, MD5Checksum: tt.newMD5},
			})
			require.NoError(t, err)
			require.NotNil(t, c)

			assert.Equal(t, tt.wantAction, c.Action)
			assert.Equal(t, "docs/a.txt", c.OldPath)
			assert.Equal(t, "docs/moved/"+tt.newName, c.NewPath)
			assert.Equal(t, tt.wantContent, c.ContentChanged)
		})
	}
}

func TestClassify_ContentByHash(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.files["f1"] = &state.TrackedFile{
		FileID: "f1", Name: "a.txt", Path: "docs/a.txt", MD5: "abc", ModifiedTime: "t1",
	}

	cl := newTestClassifier(&fakeMeta{}, store)
	ctx := context.Background()

	c, err := cl.Classify(ctx, drive.ChangeRecord{
		FileID: "f1",
		File:   &drive.FileMeta{ID: "f1", Name: "a.txt", MD5Checksum: "xyz"},
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, ActionModify, c.Action)

	// Same hash means unchanged even when the modification marker moved;
	// the re-notification classifies as a skip, not a modify.
	c, err = cl.Classify(ctx, drive.ChangeRecord{
		FileID: "f1",
		File:   &drive.FileMeta{ID: "f1", Name: "a.txt", MD5Checksum: "abc", ModifiedTime: "t2"},
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, ActionSkip, c.Action)
}

func TestClassify_NativeContentByModifiedTime(t *testing.T) {
	t.Parallel()

	const gdoc = "application/vnd.google-apps.document"

	store := newFakeStore()
	store.files["f1"] = &state.TrackedFile{
		FileID: "f1", Name: "Notes", Path: "docs/Notes", MimeType: gdoc, ModifiedTime: "t1",
	}

	cl := newTestClassifier(&fakeMeta{}, store)
	ctx := context.Background()

	c, err := cl.Classify(ctx, drive.ChangeRecord{
		FileID: "f1",
		File:   &drive.FileMeta{ID: "f1", Name: "Notes", MimeType: gdoc, ModifiedTime: "t2"},
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, ActionModify, c.Action)

	c, err = cl.Classify(ctx, drive.ChangeRecord{
		FileID: "f1",
		File:   &drive.FileMeta{ID: "f1", Name: "Notes", MimeType: gdoc, ModifiedTime: "t1"},
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, ActionSkip, c.Action, "unchanged re-notification is a skip, not a modify")
}

func TestClassify_NativeRenameAlwaysRefetches(t *testing.T) {
	t.Parallel()

	const gdoc = "application/vnd.google-apps.document"

	store := newFakeStore()
	store.files["f1"] = &state.TrackedFile{
		FileID: "f1", Name: "Notes", Path: "docs/Notes", MimeType: gdoc, ModifiedTime: "t1",
	}

	cl := newTestClassifier(&fakeMeta{}, store)

	// Identical modification marker; it cannot be trusted across a rename.
	c, err := cl.Classify(context.Background(), drive.ChangeRecord{
		FileID: "f1",
		File:   &drive.FileMeta{ID: "f1", Name: "Minutes", MimeType: gdoc, ModifiedTime: "t1"},
	})
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, ActionRename, c.Action)
	assert.True(t, c.ContentChanged, "hashless rename always re-fetches content")
}

func TestDedup_KeepsLatestAtFirstSeenPosition(t *testing.T) {
	t.Parallel()

	records := []drive.ChangeRecord{
		{FileID: "f1", File: &drive.FileMeta{ID: "f1", MD5Checksum: "v1"}},
		{FileID: "f2", File: &drive.FileMeta{ID: "f2"}},
		{FileID: "f1", File: &drive.FileMeta{ID: "f1", MD5Checksum: "v2"}},
	}

	out := Dedup(records)
	require.Len(t, out, 2)

	assert.Equal(t, "f1", out[0].FileID)
	assert.Equal(t, "v2", out[0].File.MD5Checksum, "latest record wins")
	assert.Equal(t, "f2", out[1].FileID)
}
