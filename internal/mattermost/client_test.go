package mattermost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"izin-bot/internal/leave"
)

type fakeServer struct {
	mu      sync.Mutex
	posts   []Post
	updated map[string]Post
	members []ChannelMember
	failDM  bool
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v4/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		id := r.PathValue("id")
		if id == "me" {
			id = "bot-id"
		}
		json.NewEncoder(w).Encode(User{ID: id, Username: "user-" + id})
	})
	mux.HandleFunc("POST /api/v4/channels/direct", func(w http.ResponseWriter, r *http.Request) {
		if f.failDM {
			http.Error(w, `{"message":"forbidden"}`, http.StatusForbidden)
			return
		}
		var ids []string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ids))
		json.NewEncoder(w).Encode(map[string]string{"id": "dm-" + ids[0] + "-" + ids[1]})
	})
	mux.HandleFunc("POST /api/v4/posts", func(w http.ResponseWriter, r *http.Request) {
		var p Post
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		f.mu.Lock()
		f.posts = append(f.posts, p)
		f.mu.Unlock()
		p.ID = "post-1"
		json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("PUT /api/v4/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		var p Post
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, r.PathValue("id"), p.ID)
		f.mu.Lock()
		if f.updated == nil {
			f.updated = make(map[string]Post)
		}
		f.updated[p.ID] = p
		f.mu.Unlock()
		json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("GET /api/v4/channels/{id}/members", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "broken" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "200", r.URL.Query().Get("per_page"))
		json.NewEncoder(w).Encode(f.members)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeServer) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret")
}

func TestCreatePost_Thread(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)

	post, err := c.CreatePost(context.Background(), &Post{ChannelID: "ch", RootID: "root", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "post-1", post.ID)
	require.Len(t, f.posts, 1)
	assert.Equal(t, "root", f.posts[0].RootID)
}

func TestUpdatePost_ReplacesAttachments(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)

	post, err := c.UpdatePost(context.Background(), "post-9", &Post{
		ChannelID: "ch",
		Message:   "expired",
		Props:     Props{Attachments: []Attachment{{Color: "#d24b4e"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "post-9", post.ID)

	got, ok := f.updated["post-9"]
	require.True(t, ok)
	assert.Equal(t, "expired", got.Message)
	require.Len(t, got.Props.Attachments, 1)
	assert.Empty(t, got.Props.Attachments[0].Actions)
	assert.Equal(t, "#d24b4e", got.Props.Attachments[0].Color)
}

func TestSendDM(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)

	require.NoError(t, c.SendDM(context.Background(), "u1", "hello"))
	require.Len(t, f.posts, 1)
	assert.Equal(t, "dm-bot-id-u1", f.posts[0].ChannelID)
	assert.Equal(t, "hello", f.posts[0].Message)
}

func TestRoster_AdminsPlusStatic(t *testing.T) {
	f := &fakeServer{members: []ChannelMember{
		{UserID: "u1", SchemeAdmin: false},
		{UserID: "admin-1", SchemeAdmin: true},
		{UserID: "static-1", SchemeAdmin: true},
		{UserID: "admin-2", SchemeAdmin: true},
	}}
	r := NewRoster(newTestClient(t, f), []string{"static-1"})

	ids, err := r.OverseersOf(context.Background(), "ch")
	require.NoError(t, err)
	assert.Equal(t, []string{"static-1", "admin-1", "admin-2"}, ids)
}

func TestRoster_LookupError(t *testing.T) {
	r := NewRoster(newTestClient(t, &fakeServer{}), nil)
	_, err := r.OverseersOf(context.Background(), "broken")
	assert.ErrorIs(t, err, leave.ErrLookup)
	assert.Contains(t, err.Error(), "api error 500")
}

func TestSink_DeliveryError(t *testing.T) {
	s := NewSink(newTestClient(t, &fakeServer{failDM: true}))
	err := s.Deliver(context.Background(), "u1", "late")
	assert.ErrorIs(t, err, leave.ErrDelivery)
}
