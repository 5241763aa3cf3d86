package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultCommentAuthor is the author attached to every comment added from the front end.
const DefaultCommentAuthor = "Anonymous"

type Post struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Tags      Tags      `json:"tags"`
	Date      Timestamp `json:"date"`
	UpdatedAt Timestamp `json:"updated_at,omitempty"`
	Likes     int       `json:"likes"`
	Dislikes  int       `json:"dislikes"`
	Comments  []Comment `json:"comments"`
}

// Updated reports whether the API sent an update timestamp for the post.
func (p Post) Updated() bool {
	return p.UpdatedAt != ""
}

// Timestamp is a date the API formats itself. Strings are kept verbatim, null
// is empty, and any other JSON value (such as epoch seconds) keeps its raw text.
type Timestamp string

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		*ts = ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*ts = Timestamp(s)
	default:
		*ts = Timestamp(raw)
	}
	return nil
}

type Comment struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Tags keeps whatever JSON value the API sent for a post's tags so it can be
// rendered as-is. Strings render verbatim, lists join with ",", null renders empty.
type Tags struct {
	raw json.RawMessage
}

// TagsFromString builds Tags holding a single string value.
func TagsFromString(s string) Tags {
	b, _ := json.Marshal(s)
	return Tags{raw: b}
}

func (t *Tags) UnmarshalJSON(data []byte) error {
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (t Tags) MarshalJSON() ([]byte, error) {
	if len(t.raw) == 0 {
		return []byte("null"), nil
	}
	return t.raw, nil
}

func (t Tags) String() string {
	raw := bytes.TrimSpace(t.raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = Tags{raw: item}.String()
			}
			return strings.Join(parts, ",")
		}
	}
	return string(raw)
}

// CreatePostRequest is the body sent to POST /posts.
type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`
	Tags    string `json:"tags"`
}

// UpdatePostRequest is the body sent to PUT /posts/{id}.
type UpdatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CommentRequest is the body sent to POST /posts/{id}/comments.
type CommentRequest struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}
