package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"izin-bot/internal/clock"
	"izin-bot/internal/config"
	"izin-bot/internal/i18n"
	"izin-bot/internal/leave"
	"izin-bot/internal/mattermost"
	"izin-bot/internal/model"
	"izin-bot/internal/service"
)

type fakePoster struct {
	n       int
	locales map[string]string // user ID -> Mattermost locale
}

func (f *fakePoster) CreatePost(_ context.Context, p *mattermost.Post) (*mattermost.Post, error) {
	f.n++
	out := *p
	out.ID = "post-" + string(rune('0'+f.n))
	return &out, nil
}

func (f *fakePoster) UpdatePost(_ context.Context, postID string, p *mattermost.Post) (*mattermost.Post, error) {
	out := *p
	out.ID = postID
	return &out, nil
}

func (f *fakePoster) GetUser(_ context.Context, id string) (*mattermost.User, error) {
	if id == "ghost" {
		return nil, errors.New("not found")
	}
	return &mattermost.User{ID: id, Username: id, Locale: f.locales[id]}, nil
}

type nopEscalator struct{}

func (nopEscalator) Notify(context.Context, model.LeaveRequest) leave.Report { return leave.Report{} }

type fakeHistory struct {
	err     error
	groupID string
	member  string
	limit   int
}

func (f *fakeHistory) ListByGroup(_ context.Context, groupID string, limit int) ([]*model.LeaveRequest, error) {
	f.groupID, f.limit = groupID, limit
	return []*model.LeaveRequest{{ID: "r1", GroupID: groupID, Status: model.LeaveStatusExpired}}, f.err
}

func (f *fakeHistory) ListByMember(_ context.Context, groupID, memberID string, limit int) ([]*model.LeaveRequest, error) {
	f.groupID, f.member, f.limit = groupID, memberID, limit
	return nil, f.err
}

func newTestMux(t *testing.T, history History) *http.ServeMux {
	t.Helper()
	return newLocalizedMux(t, history, "en", &fakePoster{})
}

func newLocalizedMux(t *testing.T, history History, defaultLocale string, poster *fakePoster) *http.ServeMux {
	t.Helper()
	_, err := i18n.Init(defaultLocale)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = i18n.Init("en") })

	reg, err := leave.NewRegistry(config.DefaultCategories())
	require.NoError(t, err)
	engine := leave.NewEngine(reg, nopEscalator{}, leave.WithClock(clock.Fake(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))))
	t.Cleanup(engine.Close)

	svc := service.NewLeaveService(engine, poster, "http://bot", zerolog.Nop())
	mux := http.NewServeMux()
	NewLeaveHandler(svc, poster, history, zerolog.Nop()).RegisterRoutes(mux)
	return mux
}

func postAction(t *testing.T, mux http.Handler, path string, req ActionRequest) ActionResponse {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ActionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func slash(t *testing.T, mux http.Handler, userID, text string) SlashResponse {
	t.Helper()
	form := url.Values{"channel_id": {"ch"}, "user_id": {userID}, "user_name": {userID}, "text": {text}}
	req := httptest.NewRequest(http.MethodPost, "/api/izin", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlashResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestSlashCommand_Menu(t *testing.T) {
	mux := newTestMux(t, nil)
	resp := slash(t, mux, "u1", "")
	assert.Equal(t, "ephemeral", resp.ResponseType)
	require.Len(t, resp.Attachments, 2)
	assert.Len(t, resp.Attachments[0].Actions, 3)
}

func TestSlashCommand_StartListDone(t *testing.T) {
	mux := newTestMux(t, nil)

	resp := slash(t, mux, "budi", "JOJO")
	assert.Contains(t, resp.Text, "@budi is on izin jojo leave")

	resp = slash(t, mux, "budi", "list")
	assert.Contains(t, resp.Text, "| @budi | izin jojo | 5m0s |")

	resp = slash(t, mux, "budi", "done")
	assert.Contains(t, resp.Text, "Welcome back, @budi")

	resp = slash(t, mux, "budi", "cancel")
	assert.Equal(t, "You have no active leave to cancel.", resp.Text)
}

func TestActions_StartAndDone(t *testing.T) {
	mux := newTestMux(t, nil)

	resp := postAction(t, mux, "/api/izin/start", ActionRequest{
		UserID: "u1", UserName: "budi", ChannelID: "ch",
		Context: map[string]any{"category": "sebat"},
	})
	assert.Contains(t, resp.EphemeralText, "@budi is on izin sebat leave")

	resp = postAction(t, mux, "/api/izin/start", ActionRequest{
		UserID: "u1", UserName: "budi", ChannelID: "ch",
		Context: map[string]any{"category": "jojo"},
	})
	assert.Contains(t, resp.EphemeralText, "already have an active leave")

	resp = postAction(t, mux, "/api/izin/done", ActionRequest{
		UserID: "u2", ChannelID: "ch", PostID: "post-1",
		Context: map[string]any{"member_id": "u1"},
	})
	assert.Equal(t, "⛔ Only the person who took the leave can press DONE.", resp.EphemeralText)
	assert.Nil(t, resp.Update)

	resp = postAction(t, mux, "/api/izin/done", ActionRequest{
		UserID: "u1", ChannelID: "ch", PostID: "post-1",
		Context: map[string]any{"member_id": "u1"},
	})
	require.NotNil(t, resp.Update)
	assert.Contains(t, resp.Update.Message, "Welcome back, @budi")
}

func TestReplies_FollowUserLocale(t *testing.T) {
	poster := &fakePoster{locales: map[string]string{"budi": "en", "sari": "id"}}
	mux := newLocalizedMux(t, nil, "id", poster)

	resp := slash(t, mux, "budi", "jojo")
	assert.Contains(t, resp.Text, "@budi is on izin jojo leave")

	resp = slash(t, mux, "sari", "cancel")
	assert.Equal(t, "Tidak ada izin yang bisa dibatalkan.", resp.Text)

	// No locale on the profile, or no profile at all: the default applies.
	resp = slash(t, mux, "rudi", "cancel")
	assert.Equal(t, "Tidak ada izin yang bisa dibatalkan.", resp.Text)
	resp = slash(t, mux, "ghost", "cancel")
	assert.Equal(t, "Tidak ada izin yang bisa dibatalkan.", resp.Text)

	done := postAction(t, mux, "/api/izin/done", ActionRequest{
		UserID: "sari", ChannelID: "ch",
		Context: map[string]any{"member_id": "budi"},
	})
	assert.Equal(t, "⛔ Hanya yang mengambil izin yang bisa menekan DONE.", done.EphemeralText)
	en := postAction(t, mux, "/api/izin/done", ActionRequest{
		UserID: "budi", ChannelID: "ch",
		Context: map[string]any{"member_id": "budi"},
	})
	require.NotNil(t, en.Update)
	assert.Contains(t, en.Update.Message, "Welcome back, @budi")
}

func TestActions_MissingContext(t *testing.T) {
	mux := newTestMux(t, nil)
	resp := postAction(t, mux, "/api/izin/start", ActionRequest{UserID: "u1", ChannelID: "ch"})
	assert.Equal(t, "Missing category", resp.EphemeralText)
	resp = postAction(t, mux, "/api/izin/done", ActionRequest{UserID: "u1", ChannelID: "ch"})
	assert.Equal(t, "Missing member ID", resp.EphemeralText)
}

func TestActions_Cancel(t *testing.T) {
	mux := newTestMux(t, nil)
	postAction(t, mux, "/api/izin/start", ActionRequest{
		UserID: "u1", UserName: "budi", ChannelID: "ch",
		Context: map[string]any{"category": "ee"},
	})

	resp := postAction(t, mux, "/api/izin/cancel", ActionRequest{
		UserID: "u1", ChannelID: "ch",
		Context: map[string]any{"member_id": "u1"},
	})
	require.NotNil(t, resp.Update)
	assert.Equal(t, "@budi cancelled their izin ee leave.", resp.Update.Message)
}

func TestActive(t *testing.T) {
	mux := newTestMux(t, nil)
	slash(t, mux, "budi", "ee")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/izin/active?channel_id=ch", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ChannelID string              `json:"channel_id"`
		Active    []leave.ActiveLeave `json:"active"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Active, 1)
	assert.Equal(t, "budi", body.Active[0].MemberID)
	assert.Equal(t, 10*time.Minute, body.Active[0].Remaining)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/izin/active", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestMux(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/izin/history?channel_id=ch", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	h := &fakeHistory{}
	mux := newTestMux(t, h)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/izin/history?channel_id=ch&limit=20", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ch", h.groupID)
	assert.Equal(t, 20, h.limit)
	assert.Contains(t, rec.Body.String(), `"status":"expired"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/izin/history?channel_id=ch&member_id=u9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u9", h.member)
	assert.Contains(t, rec.Body.String(), `"history":[]`)

	h.err = errors.New("mongo down")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/izin/history?channel_id=ch", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	h := LoggingMiddleware(zerolog.New(&buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/x"`)
}
