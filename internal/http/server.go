package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/matt-wil/masterblog/internal/browser"
	"github.com/matt-wil/masterblog/internal/config"
	"github.com/matt-wil/masterblog/internal/content"
	"github.com/matt-wil/masterblog/internal/model"
	"github.com/matt-wil/masterblog/internal/rate"
)

// OwnerCookie holds the random id that scopes a browser's saved base URL.
const OwnerCookie = "masterblog_client"

type Server struct {
	browser   *browser.Browser
	limiter   rate.Limiter
	cfg       config.Config
	content   content.Renderer
	logger    *log.Logger
	templates *Templates
	router    *mux.Router
}

func NewServer(b *browser.Browser, limiter rate.Limiter, cfg config.Config, logger *log.Logger) (*Server, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	if limiter == nil {
		limiter = rate.Nop{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		browser:   b,
		limiter:   limiter,
		cfg:       cfg,
		content:   content.New(cfg.Markdown),
		logger:    logger,
		templates: tmpl,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests, s.recoverPanics)

	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/load", s.handleLoad).Methods(http.MethodPost)
	r.HandleFunc("/posts", s.handleCreate).Methods(http.MethodPost)

	posts := r.PathPrefix("/posts/{id:[0-9]+}").Subrouter()
	posts.HandleFunc("/edit", s.handleEditPage).Methods(http.MethodGet)
	posts.HandleFunc("/update", s.handleUpdate).Methods(http.MethodPost)
	posts.HandleFunc("/delete", s.handleDelete).Methods(http.MethodPost)
	posts.HandleFunc("/like", s.handleLike).Methods(http.MethodPost)
	posts.HandleFunc("/dislike", s.handleDislike).Methods(http.MethodPost)
	posts.HandleFunc("/comments", s.handleComment).Methods(http.MethodPost)

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles()))))
	r.HandleFunc("/favicon.svg", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/static/favicon.svg", http.StatusMovedPermanently)
	})

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { notFound(w) })
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { methodNotAllowed(w) })
	return r
}

// postView is a post prepared for the page template.
type postView struct {
	ID        int64
	Title     string
	Content   template.HTML
	Tags      string
	Author    string
	Date      string
	UpdatedAt string
	Updated   bool
	Likes     int
	Dislikes  int
	Comments  []model.Comment
}

func (s *Server) postViews(posts []model.Post) []postView {
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, postView{
			ID:        p.ID,
			Title:     p.Title,
			Content:   s.content.Render(p.Content),
			Tags:      p.Tags.String(),
			Author:    p.Author,
			Date:      string(p.Date),
			UpdatedAt: string(p.UpdatedAt),
			Updated:   p.Updated(),
			Likes:     p.Likes,
			Dislikes:  p.Dislikes,
			Comments:  p.Comments,
		})
	}
	return views
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(w, r)
	page, _ := s.browser.Initialize(r.Context(), owner)
	s.renderPage(w, r, page)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, page browser.Page) {
	if wantsJSON(r) {
		posts := page.Posts
		if posts == nil {
			posts = []model.Post{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"base_url": page.BaseURL,
			"loaded":   page.Loaded,
			"posts":    posts,
		})
		return
	}

	baseURL := page.BaseURL
	if !page.Loaded && baseURL == "" {
		baseURL = s.cfg.DefaultBaseURL
	}
	data := map[string]any{
		"Title":   "Masterblog",
		"BaseURL": baseURL,
		"Loaded":  page.Loaded,
		"Posts":   s.postViews(page.Posts),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Home.ExecuteTemplate(w, "layout", data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"version":    s.cfg.Version,
		"commit":     s.cfg.Commit,
		"build_time": s.cfg.BuildTime,
	})
}

// handleLoad saves the submitted base URL. The redirect target lists posts with it.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	owner := s.owner(w, r)
	baseURL := strings.TrimSpace(r.PostFormValue("base_url"))
	if wantsJSON(r) {
		page, _ := s.browser.List(r.Context(), owner, baseURL)
		s.renderPage(w, r, page)
		return
	}
	if err := s.browser.SaveBaseURL(r.Context(), owner, baseURL); err != nil {
		s.logger.Printf("Error: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleEditPage(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	owner := s.owner(w, r)
	baseURL := r.URL.Query().Get("base_url")
	if baseURL == "" {
		baseURL, _ = s.browser.SavedBaseURL(r.Context(), owner)
	}

	data := map[string]any{
		"Title":   "Update post",
		"BaseURL": baseURL,
		"PostID":  id,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.Edit.ExecuteTemplate(w, "layout", data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req := model.CreatePostRequest{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
		Author:  r.PostFormValue("author"),
		Tags:    r.PostFormValue("tags"),
	}
	s.mutate(w, r, func(ctx context.Context, baseURL string) error {
		return s.browser.Create(ctx, baseURL, req)
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.mutatePost(w, r, func(ctx context.Context, baseURL string, id int64) error {
		return s.browser.Update(ctx, baseURL, id, r.PostFormValue("title"), r.PostFormValue("content"))
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mutatePost(w, r, s.browser.Delete)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.mutatePost(w, r, s.browser.Like)
}

func (s *Server) handleDislike(w http.ResponseWriter, r *http.Request) {
	s.mutatePost(w, r, s.browser.Dislike)
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	s.mutatePost(w, r, func(ctx context.Context, baseURL string, id int64) error {
		field := "comment-" + strconv.FormatInt(id, 10)
		text := r.PostFormValue(field)
		if _, ok := r.PostForm[field]; !ok {
			text = r.PostFormValue("content")
		}
		return s.browser.AddComment(ctx, baseURL, id, text)
	})
}

func (s *Server) mutatePost(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, baseURL string, id int64) error) {
	id, err := postID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mutate(w, r, func(ctx context.Context, baseURL string) error {
		return run(ctx, baseURL, id)
	})
}

// mutate runs one mutating request and then hands over to exactly one List:
// HTML forms are redirected to the home page, JSON callers get the fresh list
// in the response.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, run browser.Action) {
	owner := s.owner(w, r)
	baseURL := s.formBaseURL(r, owner)

	if s.allowRateLimit(owner) {
		_ = run(r.Context(), baseURL)
	} else {
		s.logger.Printf("rate limit exceeded for %s, dropping %s %s", owner, r.Method, r.URL.Path)
	}

	if wantsJSON(r) {
		page, _ := s.browser.List(r.Context(), owner, baseURL)
		s.renderPage(w, r, page)
		return
	}
	// The redirect target lists from the saved URL, so it must be the one
	// just mutated.
	if err := s.browser.SaveBaseURL(r.Context(), owner, baseURL); err != nil {
		s.logger.Printf("Error: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// formBaseURL returns the base URL the form was submitted with, falling back
// to the saved one.
func (s *Server) formBaseURL(r *http.Request, owner string) string {
	_ = r.ParseForm()
	if _, ok := r.PostForm["base_url"]; ok {
		return strings.TrimSpace(r.PostForm.Get("base_url"))
	}
	saved, _ := s.browser.SavedBaseURL(r.Context(), owner)
	return saved
}

func (s *Server) allowRateLimit(owner string) bool {
	limit := s.cfg.RateLimits.MutationsPerMinute
	if limit <= 0 {
		return true
	}
	ok, _ := s.limiter.Allow(rate.MutationKey(owner), limit, time.Minute)
	return ok
}

// owner returns the browser's id from its cookie, issuing a new one if needed.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(OwnerCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     OwnerCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	// Later lookups in this request must see the same id.
	r.AddCookie(&http.Cookie{Name: OwnerCookie, Value: id})
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s took %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Printf("PANIC: %v", err)
				writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func postID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errors.New("invalid post id")
	}
	return id, nil
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}
