package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"izin-bot/internal/i18n"
	"izin-bot/internal/leave"
	"izin-bot/internal/mattermost"
	"izin-bot/internal/model"
	"izin-bot/internal/service"
)

// History serves resolved leaves for reporting.
type History interface {
	ListByGroup(ctx context.Context, groupID string, limit int) ([]*model.LeaveRequest, error)
	ListByMember(ctx context.Context, groupID, memberID string, limit int) ([]*model.LeaveRequest, error)
}

// Users resolves the Mattermost user behind a request.
type Users interface {
	GetUser(ctx context.Context, userID string) (*mattermost.User, error)
}

type LeaveHandler struct {
	svc     *service.LeaveService
	users   Users
	history History // nil when history is disabled
	logger  zerolog.Logger
}

func NewLeaveHandler(svc *service.LeaveService, users Users, history History, logger zerolog.Logger) *LeaveHandler {
	return &LeaveHandler{svc: svc, users: users, history: history, logger: logger}
}

// userCtx returns ctx carrying the requesting user's Mattermost locale.
func (h *LeaveHandler) userCtx(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.logger.Debug().Err(err).Str("user_id", userID).Msg("resolve user locale")
		return ctx
	}
	if user.Locale == "" {
		return ctx
	}
	return i18n.WithLocale(ctx, user.Locale)
}

// ActionRequest is the Mattermost interactive action request.
type ActionRequest struct {
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	ChannelID string         `json:"channel_id"`
	PostID    string         `json:"post_id"`
	TriggerID string         `json:"trigger_id"`
	Type      string         `json:"type"`
	Context   map[string]any `json:"context"`
}

// SlashResponse is the response to a slash command.
type SlashResponse struct {
	ResponseType string                  `json:"response_type"` // "ephemeral" or "in_channel"
	Text         string                  `json:"text,omitempty"`
	Attachments  []mattermost.Attachment `json:"attachments,omitempty"`
}

// ActionResponse is the response to an interactive action.
type ActionResponse struct {
	Update        *ActionUpdate `json:"update,omitempty"`
	EphemeralText string        `json:"ephemeral_text,omitempty"`
}

// ActionUpdate updates the original post.
type ActionUpdate struct {
	Message string            `json:"message,omitempty"`
	Props   *mattermost.Props `json:"props,omitempty"`
}

// HandleSlashCommand handles /izin. Without arguments it shows the
// category menu; "list", "done" and "cancel" act directly; any other
// argument is taken as a category name.
func (h *LeaveHandler) HandleSlashCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	channelID := r.FormValue("channel_id")
	userID := r.FormValue("user_id")
	ctx := h.userCtx(r.Context(), userID)
	rootID := r.FormValue("root_id")
	arg := strings.ToLower(strings.TrimSpace(r.FormValue("text")))

	var (
		msg string
		err error
	)
	switch arg {
	case "":
		h.writeJSON(w, SlashResponse{ResponseType: "ephemeral", Attachments: h.svc.Menu(ctx)})
		return
	case "list":
		msg = h.svc.List(ctx, channelID)
	case "done":
		msg, err = h.svc.Done(ctx, channelID, rootID, userID, userID)
	case "cancel":
		msg, err = h.svc.Cancel(ctx, channelID, userID, userID)
	default:
		msg, err = h.svc.Start(ctx, channelID, rootID, userID, r.FormValue("user_name"), arg)
	}
	if err != nil {
		msg = h.userText(ctx, "slash command", err)
	}
	h.writeJSON(w, SlashResponse{ResponseType: "ephemeral", Text: msg})
}

// HandleStart handles a category button from the menu.
func (h *LeaveHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	category, _ := req.Context["category"].(string)
	if category == "" {
		h.writeJSON(w, ActionResponse{EphemeralText: "Missing category"})
		return
	}

	ctx := h.userCtx(r.Context(), req.UserID)
	msg, err := h.svc.Start(ctx, req.ChannelID, "", req.UserID, req.UserName, category)
	if err != nil {
		h.writeJSON(w, ActionResponse{EphemeralText: h.userText(ctx, "start leave", err)})
		return
	}
	h.writeJSON(w, ActionResponse{EphemeralText: msg})
}

// HandleDone handles the DONE button on a leave announcement.
func (h *LeaveHandler) HandleDone(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	memberID, _ := req.Context["member_id"].(string)
	if memberID == "" {
		h.writeJSON(w, ActionResponse{EphemeralText: "Missing member ID"})
		return
	}

	ctx := h.userCtx(r.Context(), req.UserID)
	msg, err := h.svc.Done(ctx, req.ChannelID, req.PostID, memberID, req.UserID)
	if err != nil {
		h.writeJSON(w, ActionResponse{EphemeralText: h.userText(ctx, "complete leave", err)})
		return
	}
	h.writeJSON(w, ActionResponse{
		Update: &ActionUpdate{
			Message: msg,
			Props:   &mattermost.Props{Attachments: []mattermost.Attachment{}},
		},
	})
}

// HandleCancel handles the Cancel button on a leave announcement.
func (h *LeaveHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	memberID, _ := req.Context["member_id"].(string)
	if memberID == "" {
		memberID = req.UserID
	}

	ctx := h.userCtx(r.Context(), req.UserID)
	msg, err := h.svc.Cancel(ctx, req.ChannelID, memberID, req.UserID)
	if err != nil {
		h.writeJSON(w, ActionResponse{EphemeralText: h.userText(ctx, "cancel leave", err)})
		return
	}
	h.writeJSON(w, ActionResponse{
		Update: &ActionUpdate{
			Message: msg,
			Props:   &mattermost.Props{Attachments: []mattermost.Attachment{}},
		},
	})
}

// HandleList handles the "who is out" button.
func (h *LeaveHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	ctx := h.userCtx(r.Context(), req.UserID)
	h.writeJSON(w, ActionResponse{EphemeralText: h.svc.List(ctx, req.ChannelID)})
}

// HandleActive returns the channel's active leaves as JSON.
func (h *LeaveHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel_id")
	if channelID == "" {
		http.Error(w, "channel_id is required", http.StatusBadRequest)
		return
	}
	rows := h.svc.Active(channelID)
	if rows == nil {
		rows = []leave.ActiveLeave{}
	}
	h.writeJSON(w, map[string]any{"channel_id": channelID, "active": rows})
}

// HandleHistory returns resolved leaves of a channel, optionally for one member.
func (h *LeaveHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history is disabled", http.StatusNotImplemented)
		return
	}
	q := r.URL.Query()
	channelID := q.Get("channel_id")
	if channelID == "" {
		http.Error(w, "channel_id is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	var (
		records []*model.LeaveRequest
		err     error
	)
	if memberID := q.Get("member_id"); memberID != "" {
		records, err = h.history.ListByMember(r.Context(), channelID, memberID, limit)
	} else {
		records, err = h.history.ListByGroup(r.Context(), channelID, limit)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("channel_id", channelID).Msg("list leave history")
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*model.LeaveRequest{}
	}
	h.writeJSON(w, map[string]any{"channel_id": channelID, "history": records})
}

// userText turns a service error into text for the requesting user.
// Unexpected errors are logged and replaced by a generic message.
func (h *LeaveHandler) userText(ctx context.Context, op string, err error) string {
	var ue *service.UserError
	if errors.As(err, &ue) {
		return ue.Text
	}
	h.logger.Error().Err(err).Str("op", op).Msg("leave request failed")
	return i18n.T(ctx, "error_generic")
}

// RegisterRoutes registers all leave routes on the given mux.
func (h *LeaveHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/izin", h.HandleSlashCommand)
	mux.HandleFunc("POST /api/izin/start", h.HandleStart)
	mux.HandleFunc("POST /api/izin/done", h.HandleDone)
	mux.HandleFunc("POST /api/izin/cancel", h.HandleCancel)
	mux.HandleFunc("POST /api/izin/list", h.HandleList)
	mux.HandleFunc("GET /api/izin/active", h.HandleActive)
	mux.HandleFunc("GET /api/izin/history", h.HandleHistory)
}

func (h *LeaveHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("encoding response")
	}
}
