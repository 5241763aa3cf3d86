// Package apitest provides an in-memory posts API for tests.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/matt-wil/masterblog/internal/model"
)

// Request is one call the fake API received.
type Request struct {
	Method string
	Path   string
	Body   string
}

// API is a fake of the external posts API. It keeps posts in memory and
// records every request so tests can count them.
type API struct {
	*httptest.Server

	mu       sync.Mutex
	posts    []model.Post
	nextID   int64
	requests []Request

	listBody string
	failWith int
}

// New starts a fake API seeded with posts.
func New(posts ...model.Post) *API {
	a := &API{nextID: 1}
	for _, p := range posts {
		if p.ID >= a.nextID {
			a.nextID = p.ID + 1
		}
		a.posts = append(a.posts, p)
	}
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	return a
}

// Requests returns a copy of the recorded requests.
func (a *API) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Request(nil), a.requests...)
}

// Count returns how many requests matched method and path.
func (a *API) Count(method, path string) int {
	n := 0
	for _, r := range a.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Reset forgets recorded requests.
func (a *API) Reset() {
	a.mu.Lock()
	a.requests = nil
	a.mu.Unlock()
}

// SetListBody makes GET /posts answer with body verbatim.
func (a *API) SetListBody(body string) {
	a.mu.Lock()
	a.listBody = body
	a.mu.Unlock()
}

// SetFailWith makes every request answer with status. Zero restores normal behavior.
func (a *API) SetFailWith(status int) {
	a.mu.Lock()
	a.failWith = status
	a.mu.Unlock()
}

// Posts returns a copy of the stored posts.
func (a *API) Posts() []model.Post {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.Post(nil), a.posts...)
}

func (a *API) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, Request{Method: r.Method, Path: r.URL.Path, Body: string(body)})

	if a.failWith != 0 {
		writeJSON(w, a.failWith, map[string]string{"error": "forced failure"})
		return
	}

	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(segments) == 0 || segments[0] != "posts" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			if a.listBody != "" {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(a.listBody))
				return
			}
			posts := a.posts
			if posts == nil {
				posts = []model.Post{}
			}
			writeJSON(w, http.StatusOK, posts)
		case http.MethodPost:
			var req model.CreatePostRequest
			if err := json.Unmarshal(body, &req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			post := model.Post{
				ID:      a.nextID,
				Title:   req.Title,
				Content: req.Content,
				Author:  req.Author,
				Tags:    model.TagsFromString(req.Tags),
				Date:    "2024-01-01",
			}
			a.nextID++
			a.posts = append(a.posts, post)
			writeJSON(w, http.StatusCreated, post)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
		return
	}

	id, err := strconv.ParseInt(segments[1], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	idx := a.indexOf(id)
	if idx < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "post not found"})
		return
	}

	switch {
	case len(segments) == 2 && r.Method == http.MethodPut:
		var req model.UpdatePostRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		a.posts[idx].Title = req.Title
		a.posts[idx].Content = req.Content
		a.posts[idx].UpdatedAt = "2024-01-02"
		writeJSON(w, http.StatusOK, a.posts[idx])
	case len(segments) == 2 && r.Method == http.MethodDelete:
		a.posts = append(a.posts[:idx], a.posts[idx+1:]...)
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	case len(segments) == 3 && segments[2] == "like" && r.Method == http.MethodPost:
		a.posts[idx].Likes++
		writeJSON(w, http.StatusOK, a.posts[idx])
	case len(segments) == 3 && segments[2] == "dislike" && r.Method == http.MethodPost:
		a.posts[idx].Dislikes++
		writeJSON(w, http.StatusOK, a.posts[idx])
	case len(segments) == 3 && segments[2] == "comments" && r.Method == http.MethodPost:
		var req model.CommentRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		a.posts[idx].Comments = append(a.posts[idx].Comments, model.Comment{Author: req.Author, Content: req.Content})
		writeJSON(w, http.StatusCreated, a.posts[idx])
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (a *API) indexOf(id int64) int {
	for i, p := range a.posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
