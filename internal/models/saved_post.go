package models

import "time"

// SavedPost is a viewer's bookmark of a feed post. It carries a snapshot of the
// post taken at save time, so it survives edits to the original.
type SavedPost struct {
	ID             string `json:"id"`
	ViewerID       string `json:"viewerId"`
	OriginalPostID string `json:"originalPostId"`

	AuthorName  string    `json:"authorName,omitempty"`
	AuthorImage string    `json:"authorImage,omitempty"`
	Message     string    `json:"message,omitempty"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PostedAt    time.Time `json:"postedAt"`
	SavedAt     time.Time `json:"savedAt"`
}

func (s *SavedPost) Kind() Kind { return KindSavedPost }
func (s *SavedPost) EntityID() string { return s.ID }
func (s *SavedPost) OwnerKey() string { return s.ViewerID }

func (s *SavedPost) Assign(id, owner string, now time.Time) {
	s.ID = id
	s.ViewerID = owner
	if s.SavedAt.IsZero() {
		s.SavedAt = now.UTC()
	}
}

func (s *SavedPost) Validate() error {
	return required("originalPostId", s.OriginalPostID)
}

// SnapshotOf copies the displayable fields of p into a new SavedPost for viewer.
func SnapshotOf(p *Post, viewer string) *SavedPost {
	return &SavedPost{
		ViewerID:       viewer,
		OriginalPostID: p.ID,
		AuthorName:     p.AuthorName,
		AuthorImage:    p.AuthorImage,
		Message:        p.Message,
		Category:       p.Category,
		ImageURL:       p.ImageURL,
		PostedAt:       p.CreatedAt,
	}
}
