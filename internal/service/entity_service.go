package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brainbox-app/brainbox/internal/changefeed"
	"github.com/brainbox-app/brainbox/internal/middleware"
	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/storage"
)

var errForbidden = errors.New("owner mismatch")

// Publisher receives a notification after every successful write.
type Publisher interface {
	Publish(changefeed.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(changefeed.Event) {}

// EntityService serves the owner-scoped REST API for every entity kind.
type EntityService struct {
	store     storage.Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewEntityService creates the REST service. publisher may be nil.
func NewEntityService(store storage.Store, publisher Publisher, logger *slog.Logger) *EntityService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &EntityService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// scope resolves the {owner} and {kind} path values and checks that the
// caller owns the collection.
func (s *EntityService) scope(r *http.Request) (string, models.Kind, error) {
	caller := middleware.GetEmail(r.Context())
	owner := r.PathValue("owner")
	if owner != caller {
		return "", "", fmt.Errorf("%w: %s may not access %s", errForbidden, caller, owner)
	}
	kind, err := models.ParseKind(r.PathValue("kind"))
	if err != nil {
		return "", "", err
	}
	return owner, kind, nil
}

// List handles GET /api/v1/users/{owner}/{kind}?field=value.
func (s *EntityService) List(w http.ResponseWriter, r *http.Request) {
	owner, kind, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	query := r.URL.Query()
	query.Del("access_token")
	filter := models.FilterFromQuery(query)

	all, err := s.store.ListEntities(r.Context(), kind, owner)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	out := make([]models.Entity, 0, len(all))
	for _, e := range all {
		if filter.Match(e) {
			out = append(out, e)
		}
	}

	s.logger.Debug("List", "kind", kind, "owner", owner, "filter", filter.Signature(), "count", len(out))
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /api/v1/users/{owner}/{kind}.
func (s *EntityService) Create(w http.ResponseWriter, r *http.Request) {
	owner, kind, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	e, err := models.New(kind)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := decodeBody(w, r, e); err != nil {
		writeError(w, s.logger, err)
		return
	}

	switch v := e.(type) {
	case *models.SavedPost:
		// Clients only name the post; the snapshot is taken here.
		e, err = s.snapshot(r, v.OriginalPostID, owner)
	case *models.Post:
		err = s.stampAuthor(r, v, owner)
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if err := e.Validate(); err != nil {
		writeError(w, s.logger, err)
		return
	}
	e.Assign(uuid.New().String(), owner, s.now())

	if err := s.store.CreateEntity(r.Context(), e); err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.logger.Info("Entity created", "kind", kind, "id", e.EntityID(), "owner", owner)
	s.publish(kind, e.EntityID(), owner, changefeed.ActionCreated)
	writeJSON(w, http.StatusCreated, e)
}

// Update handles PATCH /api/v1/users/{owner}/{kind}/{id}.
func (s *EntityService) Update(w http.ResponseWriter, r *http.Request) {
	owner, kind, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var patch models.Patch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := models.CheckPatch(kind, patch); err != nil {
		writeError(w, s.logger, err)
		return
	}

	current, err := s.owned(r, kind, owner)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	updated, err := models.ApplyPatch(current, patch)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.store.UpdateEntity(r.Context(), updated); err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.logger.Info("Entity updated", "kind", kind, "id", updated.EntityID(), "fields", len(patch))
	s.publish(kind, updated.EntityID(), owner, changefeed.ActionUpdated)
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/users/{owner}/{kind}/{id}.
func (s *EntityService) Delete(w http.ResponseWriter, r *http.Request) {
	owner, kind, err := s.scope(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	current, err := s.owned(r, kind, owner)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.store.DeleteEntity(r.Context(), kind, current.EntityID()); err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.logger.Info("Entity deleted", "kind", kind, "id", current.EntityID(), "owner", owner)
	s.publish(kind, current.EntityID(), owner, changefeed.ActionDeleted)
	w.WriteHeader(http.StatusNoContent)
}

// Feed handles GET /api/v1/feed?category=. Every user's posts, newest first.
func (s *EntityService) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := s.store.ListEntities(r.Context(), models.KindPost, "")
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	category := r.URL.Query().Get("category")
	out := make([]*models.Post, 0, len(posts))
	for _, e := range posts {
		p, ok := e.(*models.Post)
		if !ok || (category != "" && !strings.EqualFold(p.Category, category)) {
			continue
		}
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b *models.Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	writeJSON(w, http.StatusOK, out)
}

type likeRequest struct {
	Liked bool `json:"liked"`
}

// Like handles PUT /api/v1/posts/{id}/like. Any signed-in user may like any
// post; only their own membership in likedBy changes.
func (s *EntityService) Like(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetEmail(r.Context())

	var req likeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	post, err := s.store.SetLike(r.Context(), r.PathValue("id"), caller, req.Liked)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.logger.Info("Like set", "post_id", post.ID, "user", caller, "liked", req.Liked, "count", post.LikeCount())
	s.publish(models.KindPost, post.ID, post.OwnerID, changefeed.ActionUpdated)
	writeJSON(w, http.StatusOK, post)
}

// owned loads {id} and hides entities of other owners behind ErrNotFound.
func (s *EntityService) owned(r *http.Request, kind models.Kind, owner string) (models.Entity, error) {
	id := r.PathValue("id")
	e, err := s.store.GetEntity(r.Context(), kind, id)
	if err != nil {
		return nil, err
	}
	if e.OwnerKey() != owner {
		return nil, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return e, nil
}

func (s *EntityService) snapshot(r *http.Request, postID, viewer string) (models.Entity, error) {
	if postID == "" {
		return nil, fmt.Errorf("%w: originalPostId is required", models.ErrInvalid)
	}
	e, err := s.store.GetEntity(r.Context(), models.KindPost, postID)
	if err != nil {
		return nil, err
	}
	return models.SnapshotOf(e.(*models.Post), viewer), nil
}

// stampAuthor fills in the author fields from the caller's profile when the
// client left them empty. A post never starts with likes.
func (s *EntityService) stampAuthor(r *http.Request, p *models.Post, owner string) error {
	p.LikedBy = nil
	if p.AuthorName != "" {
		return nil
	}
	user, err := s.store.GetUserByEmail(r.Context(), owner)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			p.AuthorName = owner
			return nil
		}
		return err
	}
	p.AuthorName = user.DisplayName
	if p.AuthorImage == "" {
		p.AuthorImage = user.PhotoURL
	}
	return nil
}

func (s *EntityService) publish(kind models.Kind, id, owner string, action changefeed.Action) {
	s.publisher.Publish(changefeed.Event{Kind: kind, ID: id, Owner: owner, Action: action})
}
