package engine

import (
	"context"
	"fmt"

	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/mutation"
	"github.com/brainbox-app/brainbox/internal/optimistic"
	"github.com/brainbox-app/brainbox/internal/remote"
)

// ToggleLike flips the owner's like on a loaded post.
func (e *Engine) ToggleLike(ctx context.Context, postID string) (*models.Post, error) {
	return e.likes.Toggle(ctx, postID)
}

// SavePost bookmarks a loaded post. Saving is one-way; saving twice fails
// with optimistic.ErrAlreadySaved.
func (e *Engine) SavePost(ctx context.Context, postID string) (*models.SavedPost, error) {
	return e.saves.Toggle(ctx, postID)
}

// ToggleDone flips the completion state of a task, skill or exam.
func (e *Engine) ToggleDone(ctx context.Context, kind models.Kind, id string) (models.Entity, error) {
	p, ok := e.done[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be marked done", models.ErrInvalid, kind)
	}
	return p.Toggle(ctx, id)
}

func (e *Engine) likeBinding() optimistic.Binding[*models.Post] {
	return optimistic.Binding[*models.Post]{
		Kind: models.KindPost,
		Read: func(id string) (*models.Post, bool) {
			ent, ok := e.cache.Find(models.KindPost, id)
			if !ok {
				return nil, false
			}
			return ent.(*models.Post), true
		},
		Write:  func(_ string, p *models.Post) { e.cache.ReplaceEntity(p) },
		Settle: func(_ string, p *models.Post) { e.cache.Settle(p) },
		Predict: func(_ string, cur *models.Post) (*models.Post, error) {
			next := cur.Clone()
			next.SetLiked(e.owner, !cur.IsLikedBy(e.owner))
			return next, nil
		},
		Commit: func(ctx context.Context, id string, predicted *models.Post) (*models.Post, error) {
			return e.remote.SetLike(ctx, id, predicted.IsLikedBy(e.owner))
		},
		Drop: func(id string) { e.cache.RemoveEntity(models.KindPost, id) },
	}
}

// The save binding is keyed by the original post id; a nil value means the
// post is not saved.
func (e *Engine) saveBinding() optimistic.Binding[*models.SavedPost] {
	savedCopy := func(postID string) func(models.Entity) bool {
		return func(ent models.Entity) bool {
			s := ent.(*models.SavedPost)
			return s.OriginalPostID == postID && s.ViewerID == e.owner
		}
	}

	return optimistic.Binding[*models.SavedPost]{
		Kind: models.KindSavedPost,
		Read: func(postID string) (*models.SavedPost, bool) {
			if ent, ok := e.cache.FindFunc(models.KindSavedPost, savedCopy(postID)); ok {
				return ent.(*models.SavedPost), true
			}
			_, loaded := e.cache.Find(models.KindPost, postID)
			return nil, loaded
		},
		Write: func(postID string, s *models.SavedPost) {
			e.cache.RemoveFunc(models.KindSavedPost, savedCopy(postID))
			if s != nil {
				e.cache.AppendEntity(s)
			}
		},
		Predict: func(postID string, cur *models.SavedPost) (*models.SavedPost, error) {
			if cur != nil {
				return nil, fmt.Errorf("save post %s: %w", postID, optimistic.ErrAlreadySaved)
			}
			ent, ok := e.cache.Find(models.KindPost, postID)
			if !ok {
				return nil, fmt.Errorf("save post %s: %w", postID, optimistic.ErrNotLoaded)
			}
			s := models.SnapshotOf(ent.(*models.Post), e.owner)
			s.Assign("pending-"+postID, e.owner, e.now())
			return s, nil
		},
		Commit: func(ctx context.Context, postID string, _ *models.SavedPost) (*models.SavedPost, error) {
			ent, err := e.remote.Create(ctx, &models.SavedPost{OriginalPostID: postID})
			if err != nil {
				if remote.KindOf(err) == remote.Conflict {
					// Saved elsewhere; the cached list is out of date.
					e.cache.InvalidateKind(models.KindSavedPost)
					return nil, fmt.Errorf("%w: %w", optimistic.ErrAlreadySaved, err)
				}
				return nil, err
			}
			return ent.(*models.SavedPost), nil
		},
		Drop: func(postID string) {
			e.cache.RemoveFunc(models.KindSavedPost, savedCopy(postID))
			e.cache.RemoveEntity(models.KindPost, postID)
		},
	}
}

func (e *Engine) doneBinding(kind models.Kind) optimistic.Binding[models.Entity] {
	return optimistic.Binding[models.Entity]{
		Kind:   kind,
		Read:   func(id string) (models.Entity, bool) { return e.cache.Find(kind, id) },
		Write:  func(_ string, ent models.Entity) { e.cache.ReplaceEntity(ent) },
		Settle: func(_ string, ent models.Entity) { e.cache.Settle(ent) },
		Predict: func(id string, cur models.Entity) (models.Entity, error) {
			if cur.OwnerKey() != e.owner {
				return nil, fmt.Errorf("toggle %s %s: %w", kind, id, mutation.ErrNotOwner)
			}
			return flipDone(cur)
		},
		Commit: func(ctx context.Context, id string, predicted models.Entity) (models.Entity, error) {
			return e.remote.Update(ctx, kind, id, donePatch(predicted))
		},
		Drop: func(id string) { e.cache.RemoveEntity(kind, id) },
	}
}

// flipDone returns a copy of ent with its completion state inverted.
func flipDone(ent models.Entity) (models.Entity, error) {
	switch v := ent.(type) {
	case *models.Task:
		c := v.Clone()
		c.IsCompleted = !c.IsCompleted
		return c, nil
	case *models.SkillGoal:
		c := v.Clone()
		if c.Status == models.SkillCompleted {
			c.Status = models.SkillInProgress
		} else {
			c.Status = models.SkillCompleted
		}
		return c, nil
	case *models.ExamRoutineEntry:
		c := v.Clone()
		if c.Status == models.ExamCompleted {
			c.Status = models.ExamPending
		} else {
			c.Status = models.ExamCompleted
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s cannot be marked done", models.ErrInvalid, ent.Kind())
}

func donePatch(ent models.Entity) models.Patch {
	switch v := ent.(type) {
	case *models.Task:
		return models.Patch{"isCompleted": v.IsCompleted}
	case *models.SkillGoal:
		return models.Patch{"status": string(v.Status)}
	case *models.ExamRoutineEntry:
		return models.Patch{"status": string(v.Status)}
	}
	return nil
}
