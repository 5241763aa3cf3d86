package httpapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt-wil/masterblog/internal/apitest"
	"github.com/matt-wil/masterblog/internal/browser"
	"github.com/matt-wil/masterblog/internal/client"
	"github.com/matt-wil/masterblog/internal/config"
	"github.com/matt-wil/masterblog/internal/model"
	"github.com/matt-wil/masterblog/internal/rate"
	"github.com/matt-wil/masterblog/internal/store"
	"github.com/matt-wil/masterblog/internal/store/sqlite"
)

const testOwner = "6f1d1c4e-5c3a-4c53-9a9e-1e0d4f7f2a10"

type testEnv struct {
	server *Server
	store  *sqlite.Store
	logs   *bytes.Buffer
}

func newTestEnv(t *testing.T, cfg config.Config, limiter rate.Limiter) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)
	b := browser.New(st, client.New, logger)
	srv, err := NewServer(b, limiter, cfg, logger)
	require.NoError(t, err)
	return &testEnv{server: srv, store: st, logs: &logs}
}

func (e *testEnv) saveBaseURL(t *testing.T, baseURL string) {
	t.Helper()
	require.NoError(t, e.store.PutSetting(context.Background(), testOwner, store.KeyBaseURL, baseURL))
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: OwnerCookie, Value: testOwner})
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func parseHTML(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

func TestHomeRendersPostBlock(t *testing.T) {
	api := apitest.New(model.Post{
		ID: 1, Title: "A", Content: "B", Author: "C",
		Tags: model.TagsFromString("x"), Date: "2024-01-01",
		Likes: 2, Dislikes: 0, Comments: []model.Comment{},
	})
	defer api.Close()
	env := newTestEnv(t, config.Default(), nil)
	env.saveBaseURL(t, api.URL)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, api.Count(http.MethodGet, "/posts"))

	doc := parseHTML(t, rec)
	assert.Equal(t, api.URL, doc.Find("#api-base-url").AttrOr("value", ""))

	post := doc.Find("#post-container .post")
	require.Equal(t, 1, post.Length())
	assert.Equal(t, "post-1", post.AttrOr("id", ""))
	assert.Equal(t, "A", post.Find("h2").Text())
	assert.Equal(t, "B", post.Find(".content").Text())
	assert.Equal(t, "Tags: x", post.Find(".tags").Text())
	assert.Equal(t, "Author: C", post.Find(".author").Text())
	assert.Equal(t, "Created: 2024-01-01", post.Find(".created").Text())
	assert.Equal(t, 0, post.Find(".updated").Length())
	assert.Equal(t, "2", post.Find(".likes-count").Text())
	assert.Equal(t, "0", post.Find(".dislikes-count").Text())
	assert.Equal(t, 0, post.Find(".comment").Length())
	assert.Equal(t, 1, post.Find("input#comment-1").Length())
	assert.Contains(t, post.Find(".comments button").Text(), "Add Comment")
}

func TestHomeShowsUpdatedAndComments(t *testing.T) {
	api := apitest.New(model.Post{
		ID: 4, Title: "T", Date: "2024-01-01", UpdatedAt: "2024-02-02",
		Comments: []model.Comment{{Author: "Anonymous", Content: "hello"}},
	})
	defer api.Close()
	env := newTestEnv(t, config.Default(), nil)
	env.saveBaseURL(t, api.URL)

	doc := parseHTML(t, env.do(httptest.NewRequest(http.MethodGet, "/", nil)))
	post := doc.Find("#post-4")
	assert.Equal(t, "Updated: 2024-02-02", post.Find(".updated").Text())
	assert.Equal(t, "Anonymous: hello", post.Find(".comment").Text())
}

func TestHomeEscapesContent(t *testing.T) {
	api := apitest.New(model.Post{ID: 1, Title: "<b>x</b>", Content: "<script>alert(1)</script>"})
	defer api.Close()
	env := newTestEnv(t, config.Default(), nil)
	env.saveBaseURL(t, api.URL)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	body := rec.Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.NotContains(t, body, "<b>x</b>")
}

func TestHomeRendersMarkdownWhenEnabled(t *testing.T) {
	api := apitest.New(model.Post{ID: 1, Content: "some **bold** text"})
	defer api.Close()
	cfg := config.Default()
	cfg.Markdown = true
	env := newTestEnv(t, cfg, nil)
	env.saveBaseURL(t, api.URL)

	doc := parseHTML(t, env.do(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, "bold", doc.Find("#post-1 .content strong").Text())
}

func TestHomeWithoutSavedURLMakesNoRequest(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultBaseURL = "http://localhost:5002/api"
	env := newTestEnv(t, cfg, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	doc := parseHTML(t, rec)
	assert.Equal(t, cfg.DefaultBaseURL, doc.Find("#api-base-url").AttrOr("value", ""))
	assert.Equal(t, 0, doc.Find(".post").Length())
}

func TestHomeListFailureRendersEmptyContainer(t *testing.T) {
	api := apitest.New(model.Post{ID: 1})
	defer api.Close()
	api.SetListBody("not json")
	env := newTestEnv(t, config.Default(), nil)
	env.saveBaseURL(t, api.URL)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	doc := parseHTML(t, rec)
	assert.Equal(t, 1, doc.Find("#post-container").Length())
	assert.Equal(t, 0, doc.Find(".post").Length())
	assert.Contains(t, env.logs.String(), "Error:")
}

func TestHomeJSON(t *testing.T) {
	api := apitest.New(model.Post{ID: 1, Title: "A"})
	defer api.Close()
	env := newTestEnv(t, config.Default(), nil)
	env.saveBaseURL(t, api.URL)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		BaseURL string       `json:"base_url"`
		Posts   []model.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, api.URL, payload.BaseURL)
	require.Len(t, payload.Posts, 1)
	assert.Equal(t, "A", payload.Posts[0].Title)
}

func TestLoadSavesAndRedirects(t *testing.T) {
	env := newTestEnv(t, config.Default(), nil)

	rec := env.do(postForm("/load", url.Values{"base_url": {"http://api.test"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	saved, err := env.store.GetSetting(context.Background(), testOwner, store.KeyBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test", saved)
}

func TestMutationRedirectsWithoutListing(t *testing.T) {
	api := apitest.New(model.Post{ID: 1})
	defer api.Close()
	env := newTestEnv(t, config.Default(), nil)

	rec := env.do(postForm("/posts/1/like", url.Values{"base_url": {api.URL}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	reqs := api.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/posts/1/like", reqs[0].Path)
}

func TestMutationThenHomeListsFormURLWhenNothingSaved(t *testing.T) {
	api := apitest.New(model.Post{ID: 1})
	defer api.Close()
	cfg := config.Default()
	cfg.DefaultBaseURL = api.URL
	env := newTestEnv(t, cfg, nil)

	rec := env.do(postForm("/posts/1/like", url.Values{"base_url": {api.URL}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	doc := parseHTML(t, env.do(httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil)))
	assert.Equal(t, 1, api.Count(http.MethodPost, "/posts/1/like"))
	assert.Equal(t, 1, api.Count(http.MethodGet, "/posts"))
	assert.Equal(t, "1", doc.Find("#post-1 .likes-count").Text())
}

func TestMutationThenHomeListsFormURLOverSavedOne(t *testing.T) {
	api := apitest.New(model.Post{ID: 1})
	defer api.Close()
	other := apitest.New(model.Post{ID: 1})
	defer other.Close()
	env := newTestEnv(t, config.Default(), nil)
	env.saveBaseURL(t, other.URL)

	rec := env.do(postForm("/posts/1/dislike", url.Values{"base_url": {api.URL}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	env.do(httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil))

	assert.Equal(t, 1, api.Count(http.MethodPost, "/posts/1/dislike"))
	assert.Equal(t, 1, api.Count(http.MethodGet, "/posts"))
	assert.Empty(t, other.Requests())

	saved, err := env.store.GetSetting(context.Background(), testOwner, store.KeyBaseURL)
	require.NoError(t, err)
	assert.Equal(t, api.URL, saved)
}

func TestHomeRendersNumericTimestamps(t *testing.T) {
	api := apitest.New()
	defer api.Close()
	api.SetListBody(`[{"id":1,"title":"A","date":1704067200,"updated_at":1704153600}]`)
	env := newTestEnv(t, config.Default(), nil)
	env.saveBaseURL(t, api.URL)

	doc := parseHTML(t, env.do(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, "Created: 1704067200", doc.Find("#post-1 .created").Text())
	assert.Equal(t, "Updated: 1704153600", doc.Find("#post-1 .updated").Text())
}

func TestMutationUsesSavedURLWithoutFormField(t *testing.T) {
	api := apitest.New(model.Post{ID: 1})
	defer api.Close()
	env := newTestEnv(t, config.Default(), nil)
	env.saveBaseURL(t, api.URL)

	env.do(postForm("/posts/1/dislike", url.Values{}))
	assert.Equal(t, 1, api.Count(http.MethodPost, "/posts/1/dislike"))
}

func TestCommentEmptyStillPosts(t *testing.T) {
	api := apitest.New(model.Post{ID: 2})
	defer api.Close()
	env := newTestEnv(t, config.Default(), nil)

	env.do(postForm("/posts/2/comments", url.Values{"base_url": {api.URL}, "comment-2": {""}}))

	reqs := api.Requests()
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"author":"Anonymous","content":""}`, reqs[0].Body)
}

func TestMutationJSONReturnsFreshList(t *testing.T) {
	api := apitest.New(model.Post{ID: 1, Title: "old"})
	defer api.Close()
	env := newTestEnv(t, config.Default(), nil)

	req := postForm("/posts/1/update", url.Values{"base_url": {api.URL}, "title": {"new"}, "content": {"c"}})
	req.Header.Set("Accept", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Posts []model.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Posts, 1)
	assert.Equal(t, "new", payload.Posts[0].Title)
	assert.Equal(t, model.Timestamp("2024-01-02"), payload.Posts[0].UpdatedAt)
	assert.Equal(t, 1, api.Count(http.MethodGet, "/posts"))
}

func TestEditPage(t *testing.T) {
	env := newTestEnv(t, config.Default(), nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/posts/7/edit?base_url=http://api.test", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	doc := parseHTML(t, rec)
	form := doc.Find("form")
	assert.Equal(t, "/posts/7/update", form.AttrOr("action", ""))
	assert.Equal(t, "http://api.test", form.Find("input[name=base_url]").AttrOr("value", ""))
	assert.Equal(t, 1, form.Find("#new-title").Length())
	assert.Equal(t, 1, form.Find("#new-content").Length())
}

func TestMutationRateLimited(t *testing.T) {
	api := apitest.New(model.Post{ID: 1})
	defer api.Close()
	cfg := config.Default()
	cfg.RateLimits.MutationsPerMinute = 1
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env := newTestEnv(t, cfg, rate.NewMemoryWithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		rec := env.do(postForm("/posts/1/like", url.Values{"base_url": {api.URL}}))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	}
	assert.Equal(t, 1, api.Count(http.MethodPost, "/posts/1/like"))
	assert.Contains(t, env.logs.String(), "rate limit exceeded")
}

func TestOwnerCookieIssued(t *testing.T) {
	env := newTestEnv(t, config.Default(), nil)

	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, OwnerCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestRoutesErrors(t *testing.T) {
	env := newTestEnv(t, config.Default(), nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/posts/1/like", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndStatic(t *testing.T) {
	cfg := config.Default()
	cfg.Version = "1.2.3"
	cfg.Commit = "abc123"
	cfg.BuildTime = "2024-01-01T00:00:00Z"
	env := newTestEnv(t, cfg, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"version":"1.2.3","commit":"abc123","build_time":"2024-01-01T00:00:00Z"}`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
