package sync

// Author identifies a commit author.
type Author struct {
	Name  string
	Email string
}

// AuthorBatch is the ordered set of changes attributed to one author.
type AuthorBatch struct {
	Author  Author
	Changes []*Change
}

// GroupByAuthor splits changes into per-author batches. Batches appear in
// first-seen author order and changes keep their feed order within a batch.
// The fallback author fills in whichever identity fields a change is
// missing.
func GroupByAuthor(changes []*Change, fallback Author) []*AuthorBatch {
	var batches []*AuthorBatch
	index := make(map[Author]*AuthorBatch)

	for _, c := range changes {
		author := Author{Name: c.AuthorName, Email: c.AuthorEmail}
		if author.Name == "" {
			author.Name = fallback.Name
		}

		if author.Email == "" {
			author.Email = fallback.Email
		}

		batch, ok := index[author]
		if !ok {
			batch = &AuthorBatch{Author: author}
			index[author] = batch
			batches = append(batches, batch)
		}

		batch.Changes = append(batch.Changes, c)
	}

	return batches
}
