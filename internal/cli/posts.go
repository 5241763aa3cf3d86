package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matt-wil/masterblog/internal/browser"
	"github.com/matt-wil/masterblog/internal/model"
	"github.com/matt-wil/masterblog/internal/store"
)

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <base-url>",
		Short: "Save a new API base URL and load its posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			page, err := s.browser.List(cmd.Context(), store.OwnerCLI, args[0])
			printPage(cmd.OutOrStdout(), page)
			return logged(err)
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every post from the saved API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			var page browser.Page
			if opts.baseURL != "" {
				page, err = s.browser.List(ctx, store.OwnerCLI, opts.baseURL)
			} else {
				page, err = s.browser.Initialize(ctx, store.OwnerCLI)
			}
			if !page.Loaded && err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No base URL saved. Run 'masterblog use <base-url>' first.")
				return nil
			}
			printPage(cmd.OutOrStdout(), page)
			return logged(err)
		},
	}
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var req model.CreatePostRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return apply(cmd, opts, func(b *browser.Browser) browser.Action {
				return b.CreateAction(req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "post title")
	cmd.Flags().StringVar(&req.Content, "content", "", "post content")
	cmd.Flags().StringVar(&req.Author, "author", "", "post author")
	cmd.Flags().StringVar(&req.Tags, "tags", "", "post tags")
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var title, content string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a post's title and content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return apply(cmd, opts, func(b *browser.Browser) browser.Action {
				return b.UpdateAction(id, title, content)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&content, "content", "", "new content")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a post",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return apply(cmd, opts, func(b *browser.Browser) browser.Action {
				return b.DeleteAction(id)
			})
		},
	}
}

// newReactCmd builds the like and dislike commands.
func newReactCmd(opts *rootOptions, kind string) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <id>",
		Short: fmt.Sprintf("Send a %s for a post", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return apply(cmd, opts, func(b *browser.Browser) browser.Action {
				if kind == "dislike" {
					return b.DislikeAction(id)
				}
				return b.LikeAction(id)
			})
		},
	}
}

func newCommentCmd(opts *rootOptions) *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "comment <id>",
		Short: "Add an anonymous comment to a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return apply(cmd, opts, func(b *browser.Browser) browser.Action {
				return b.AddCommentAction(id, text)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "comment text (may be empty)")
	return cmd
}

var seedPosts = []model.CreatePostRequest{
	{Title: "First post", Content: "This is the first post."},
	{Title: "Second post", Content: "This is the second post."},
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the sample posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			baseURL, err := s.baseURL(ctx, opts)
			if err != nil {
				return err
			}

			var errs []error
			for _, req := range seedPosts {
				if err := s.browser.Create(ctx, baseURL, req); err != nil {
					errs = append(errs, err)
				}
			}
			page, err := s.browser.List(ctx, store.OwnerCLI, baseURL)
			printPage(cmd.OutOrStdout(), page)
			return logged(errors.Join(append(errs, err)...))
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the saved base URL and store location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Store:    %s (%s)\n", s.cfg.Store, s.cfg.DBPath)
			saved, err := s.browser.SavedBaseURL(cmd.Context(), store.OwnerCLI)
			switch {
			case errors.Is(err, browser.ErrNoBaseURL):
				fmt.Fprintln(out, "Base URL: not set")
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "Base URL: %s\n", saved)
			}
			if s.cfg.DefaultBaseURL != "" {
				fmt.Fprintf(out, "Default:  %s\n", s.cfg.DefaultBaseURL)
			}
			return nil
		},
	}
}

// printPage writes posts in the same shape as the web page's post blocks.
func printPage(w io.Writer, page browser.Page) {
	if page.BaseURL != "" {
		fmt.Fprintf(w, "Posts from %s\n\n", page.BaseURL)
	}
	if len(page.Posts) == 0 {
		fmt.Fprintln(w, "No posts.")
		return
	}
	for _, p := range page.Posts {
		printPost(w, p)
	}
}

func printPost(w io.Writer, p model.Post) {
	fmt.Fprintf(w, "#%d %s\n", p.ID, p.Title)
	if p.Content != "" {
		fmt.Fprintf(w, "  %s\n", p.Content)
	}
	fmt.Fprintf(w, "  Tags: %s\n", p.Tags)
	fmt.Fprintf(w, "  Author: %s\n", p.Author)
	fmt.Fprintf(w, "  Created: %s\n", p.Date)
	if p.Updated() {
		fmt.Fprintf(w, "  Updated: %s\n", p.UpdatedAt)
	}
	fmt.Fprintf(w, "  Likes: %d | Dislikes: %d\n", p.Likes, p.Dislikes)
	fmt.Fprintf(w, "  Comments (%d)\n", len(p.Comments))
	for _, c := range p.Comments {
		fmt.Fprintf(w, "    %s: %s\n", c.Author, c.Content)
	}
	fmt.Fprintln(w)
}
