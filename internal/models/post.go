package models

import (
	"slices"
	"time"
)

// Post is a message on the public feed.
type Post struct {
	// ID is the unique identifier for the post (UUID format).
	ID string `json:"id"`

	// OwnerID is the owner key (email) of the author.
	OwnerID string `json:"ownerId"`

	// AuthorName and AuthorImage are copied from the author's profile at post time.
	AuthorName  string `json:"authorName"`
	AuthorImage string `json:"authorImage,omitempty"`

	// Message is the post body.
	Message string `json:"message"`

	// Category groups posts on the feed (e.g. "Study Tips", "Events").
	Category string `json:"category"`

	// ImageURL is an opaque link produced by the image host, if any.
	ImageURL string `json:"imageUrl,omitempty"`

	// CreatedAt is set by the server when the post is stored.
	CreatedAt time.Time `json:"createdAt"`

	// LikedBy holds the owner keys of users who liked the post.
	// A user appears at most once.
	LikedBy []string `json:"likedBy"`
}

func (p *Post) Kind() Kind { return KindPost }
func (p *Post) EntityID() string { return p.ID }
func (p *Post) OwnerKey() string { return p.OwnerID }

// Assign stamps the server-owned fields.
func (p *Post) Assign(id, owner string, now time.Time) {
	p.ID = id
	p.OwnerID = owner
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.UTC()
	}
	if p.LikedBy == nil {
		p.LikedBy = []string{}
	}
}

// Validate checks the author-supplied fields and the likedBy set invariant.
func (p *Post) Validate() error {
	if err := required("message", p.Message); err != nil {
		return err
	}
	if err := required("category", p.Category); err != nil {
		return err
	}
	seen := make(map[string]bool, len(p.LikedBy))
	for _, u := range p.LikedBy {
		if seen[u] {
			return invalid("likedBy contains %q twice", u)
		}
		seen[u] = true
	}
	return nil
}

// IsLikedBy reports whether user is in LikedBy.
func (p *Post) IsLikedBy(user string) bool {
	return slices.Contains(p.LikedBy, user)
}

// SetLiked adds or removes user from LikedBy. It reports whether the set changed.
func (p *Post) SetLiked(user string, liked bool) bool {
	idx := slices.Index(p.LikedBy, user)
	switch {
	case liked && idx < 0:
		p.LikedBy = append(p.LikedBy, user)
		return true
	case !liked && idx >= 0:
		p.LikedBy = slices.Delete(p.LikedBy, idx, idx+1)
		return true
	}
	return false
}

// LikeCount is the number shown next to the like button.
func (p *Post) LikeCount() int { return len(p.LikedBy) }

// Clone returns a copy that shares no slices with p.
func (p *Post) Clone() *Post {
	c := *p
	c.LikedBy = slices.Clone(p.LikedBy)
	if c.LikedBy == nil {
		c.LikedBy = []string{}
	}
	return &c
}
