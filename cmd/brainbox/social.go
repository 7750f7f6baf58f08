package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brainbox-app/brainbox/internal/models"
	"github.com/brainbox-app/brainbox/internal/optimistic"
)

var categoryFlag string

var feedCmd = &cobra.Command{
	Use:     "feed",
	GroupID: "feed",
	Short:   "Show everyone's posts, newest first",
	Example: `  brainbox feed
  brainbox feed --category "Study Tips"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		snap, err := eng.Feed(cmd.Context(), categoryFlag)
		if err != nil {
			return err
		}
		return renderEntities(cmd.OutOrStdout(), models.KindPost, snap.Entities)
	},
}

var postsCmd = &cobra.Command{
	Use:     "posts",
	GroupID: "feed",
	Short:   "Show the posts you wrote",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		snap, err := eng.MyPosts(cmd.Context())
		if err != nil {
			return err
		}
		return renderEntities(cmd.OutOrStdout(), models.KindPost, snap.Entities)
	},
}

var likeCmd = &cobra.Command{
	Use:     "like <post-id>",
	GroupID: "feed",
	Short:   "Like a post, or take the like back",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		if _, err := eng.Feed(cmd.Context(), ""); err != nil {
			return err
		}
		post, err := eng.ToggleLike(cmd.Context(), args[0])
		if err != nil {
			return notOnFeed(err, args[0])
		}
		verb := "Unliked"
		if post.IsLikedBy(eng.Owner()) {
			verb = "Liked"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s post by %s (%d likes).\n", verb, post.AuthorName, post.LikeCount())
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:     "save <post-id>",
	GroupID: "feed",
	Short:   "Keep a copy of a post in your saved posts",
	Long: `Save a copy of a post as it reads now. Later edits to the post do not
change your saved copy. A post can be saved once.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := newEngine()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if _, err := eng.Feed(ctx, ""); err != nil {
			return err
		}
		if _, err := eng.List(ctx, models.KindSavedPost, nil); err != nil {
			return err
		}
		saved, err := eng.SavePost(ctx, args[0])
		if errors.Is(err, optimistic.ErrAlreadySaved) {
			fmt.Fprintln(cmd.OutOrStdout(), "Already in your saved posts.")
			return nil
		}
		if err != nil {
			return notOnFeed(err, args[0])
		}
		return renderEntities(cmd.OutOrStdout(), models.KindSavedPost, []models.Entity{saved})
	},
}

func notOnFeed(err error, id string) error {
	if errors.Is(err, optimistic.ErrNotLoaded) {
		return fmt.Errorf("post %s is not on the feed", id)
	}
	return err
}

func init() {
	feedCmd.Flags().StringVarP(&categoryFlag, "category", "c", "", "only posts in this category")
	rootCmd.AddCommand(feedCmd, postsCmd, likeCmd, saveCmd)
}
