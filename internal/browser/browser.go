// Package browser drives the posts API for one owner: it remembers the API
// base URL, performs the mutating actions, and reloads the whole post list
// after each of them.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/matt-wil/masterblog/internal/client"
	"github.com/matt-wil/masterblog/internal/model"
	"github.com/matt-wil/masterblog/internal/store"
)

var ErrNoBaseURL = errors.New("no base url saved")

// Page is one full render pass: the base URL shown in the input and every
// post the API returned.
type Page struct {
	BaseURL string
	Posts   []model.Post
	// Loaded is true when a List ran for this page, even if it failed.
	Loaded bool
}

// ClientFactory builds an API client for a base URL.
type ClientFactory func(baseURL string) *client.Client

// Action is a single mutating request against the API.
type Action func(ctx context.Context, baseURL string) error

type Browser struct {
	settings  store.Settings
	newClient ClientFactory
	logger    *log.Logger
}

func New(settings store.Settings, newClient ClientFactory, logger *log.Logger) *Browser {
	if newClient == nil {
		newClient = client.New
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Browser{settings: settings, newClient: newClient, logger: logger}
}

// SavedBaseURL returns the persisted base URL for owner. An empty saved value
// counts as nothing saved.
func (b *Browser) SavedBaseURL(ctx context.Context, owner string) (string, error) {
	v, err := b.settings.GetSetting(ctx, owner, store.KeyBaseURL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNoBaseURL
		}
		return "", fmt.Errorf("read base url: %w", err)
	}
	if v == "" {
		return "", ErrNoBaseURL
	}
	return v, nil
}

// SaveBaseURL persists baseURL for owner without fetching anything.
func (b *Browser) SaveBaseURL(ctx context.Context, owner, baseURL string) error {
	if err := b.settings.PutSetting(ctx, owner, store.KeyBaseURL, baseURL); err != nil {
		return fmt.Errorf("save base url: %w", err)
	}
	return nil
}

// Initialize restores the saved base URL and lists posts with it. Without a
// saved URL it returns an empty page and issues no request.
func (b *Browser) Initialize(ctx context.Context, owner string) (Page, error) {
	baseURL, err := b.SavedBaseURL(ctx, owner)
	if errors.Is(err, ErrNoBaseURL) {
		return Page{}, nil
	}
	if err != nil {
		b.logger.Printf("Error: %v", err)
		return Page{}, err
	}
	return b.List(ctx, owner, baseURL)
}

// List saves baseURL for owner and fetches every post from it. Failures are
// logged and leave the page with no posts.
func (b *Browser) List(ctx context.Context, owner, baseURL string) (Page, error) {
	page := Page{BaseURL: baseURL, Loaded: true}
	if err := b.SaveBaseURL(ctx, owner, baseURL); err != nil {
		b.logger.Printf("Error: %v", err)
	}

	posts, err := b.newClient(baseURL).ListPosts(ctx)
	if err != nil {
		b.logger.Printf("Error: %v", err)
		return page, err
	}
	page.Posts = posts
	return page, nil
}

// Apply runs action and, when it succeeds, reloads the post list once.
func (b *Browser) Apply(ctx context.Context, owner, baseURL string, action Action) (Page, error) {
	if err := action(ctx, baseURL); err != nil {
		return Page{BaseURL: baseURL}, err
	}
	return b.List(ctx, owner, baseURL)
}

func (b *Browser) Create(ctx context.Context, baseURL string, req model.CreatePostRequest) error {
	post, err := b.newClient(baseURL).CreatePost(ctx, req)
	if err != nil {
		b.logger.Printf("Error: %v", err)
		return err
	}
	b.logger.Printf("Post added: %d %q", post.ID, post.Title)
	return nil
}

func (b *Browser) Update(ctx context.Context, baseURL string, id int64, title, content string) error {
	post, err := b.newClient(baseURL).UpdatePost(ctx, id, model.UpdatePostRequest{Title: title, Content: content})
	if err != nil {
		b.logger.Printf("Error updating post: %v", err)
		return err
	}
	b.logger.Printf("Post updated: %d %q", post.ID, post.Title)
	return nil
}

func (b *Browser) Delete(ctx context.Context, baseURL string, id int64) error {
	if err := b.newClient(baseURL).DeletePost(ctx, id); err != nil {
		b.logger.Printf("Error: %v", err)
		return err
	}
	b.logger.Printf("Post deleted: %d", id)
	return nil
}

func (b *Browser) Like(ctx context.Context, baseURL string, id int64) error {
	data, err := b.newClient(baseURL).LikePost(ctx, id)
	if err != nil {
		b.logger.Printf("Error liking post: %v", err)
		return err
	}
	b.logger.Printf("Post liked: %s", data)
	return nil
}

func (b *Browser) Dislike(ctx context.Context, baseURL string, id int64) error {
	data, err := b.newClient(baseURL).DislikePost(ctx, id)
	if err != nil {
		b.logger.Printf("Error disliking post: %v", err)
		return err
	}
	b.logger.Printf("Post disliked: %s", data)
	return nil
}

// AddComment posts content as an anonymous comment. Empty content is sent as is.
func (b *Browser) AddComment(ctx context.Context, baseURL string, id int64, content string) error {
	data, err := b.newClient(baseURL).AddComment(ctx, id, model.CommentRequest{
		Author:  model.DefaultCommentAuthor,
		Content: content,
	})
	if err != nil {
		b.logger.Printf("Error adding comment: %v", err)
		return err
	}
	b.logger.Printf("Comment added: %s", data)
	return nil
}

// CreateAction and the functions below adapt the mutations to Apply.
func (b *Browser) CreateAction(req model.CreatePostRequest) Action {
	return func(ctx context.Context, baseURL string) error { return b.Create(ctx, baseURL, req) }
}

func (b *Browser) UpdateAction(id int64, title, content string) Action {
	return func(ctx context.Context, baseURL string) error { return b.Update(ctx, baseURL, id, title, content) }
}

func (b *Browser) DeleteAction(id int64) Action {
	return func(ctx context.Context, baseURL string) error { return b.Delete(ctx, baseURL, id) }
}

func (b *Browser) LikeAction(id int64) Action {
	return func(ctx context.Context, baseURL string) error { return b.Like(ctx, baseURL, id) }
}

func (b *Browser) DislikeAction(id int64) Action {
	return func(ctx context.Context, baseURL string) error { return b.Dislike(ctx, baseURL, id) }
}

func (b *Browser) AddCommentAction(id int64, content string) Action {
	return func(ctx context.Context, baseURL string) error { return b.AddComment(ctx, baseURL, id, content) }
}
