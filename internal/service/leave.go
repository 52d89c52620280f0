package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"izin-bot/internal/i18n"
	"izin-bot/internal/leave"
	"izin-bot/internal/mattermost"
	"izin-bot/internal/model"
)

// Poster is the subset of the Mattermost client the service needs.
type Poster interface {
	CreatePost(ctx context.Context, post *mattermost.Post) (*mattermost.Post, error)
	UpdatePost(ctx context.Context, postID string, post *mattermost.Post) (*mattermost.Post, error)
	GetUser(ctx context.Context, userID string) (*mattermost.User, error)
}

const (
	colorActive  = "#2389d7"
	colorExpired = "#d24b4e"
)

// UserError is a rejection meant to be shown to the requesting user.
type UserError struct {
	Text string
	Err  error
}

func (e *UserError) Error() string { return e.Text }
func (e *UserError) Unwrap() error { return e.Err }

type LeaveService struct {
	engine *leave.Engine
	mm     Poster
	botURL string // Bot service base URL for integration callbacks
	logger zerolog.Logger

	mu            sync.Mutex
	announcements map[string]string // request ID -> announcement post ID
}

func NewLeaveService(engine *leave.Engine, mm Poster, botURL string, logger zerolog.Logger) *LeaveService {
	return &LeaveService{
		engine:        engine,
		mm:            mm,
		botURL:        botURL,
		logger:        logger,
		announcements: make(map[string]string),
	}
}

// Menu returns the category buttons shown by the slash command.
func (s *LeaveService) Menu(ctx context.Context) []mattermost.Attachment {
	var actions []mattermost.Action
	for _, c := range s.engine.Registry().All() {
		data := map[string]any{
			"Label":    c.DisplayName(),
			"Minutes":  minutes(c.Duration),
			"Capacity": c.Capacity,
		}
		id := "menu_option"
		if c.Bounded() {
			id = "menu_option_bounded"
		}
		actions = append(actions, mattermost.Action{
			Name: i18n.T(ctx, id, data),
			Type: "button",
			Integration: mattermost.Integration{
				URL:     s.botURL + "/api/izin/start",
				Context: map[string]any{"category": c.Name},
			},
		})
	}
	return []mattermost.Attachment{
		{Text: "**" + i18n.T(ctx, "menu_title") + "**", Actions: actions},
		{Actions: []mattermost.Action{{
			Name: i18n.T(ctx, "menu_list"),
			Type: "button",
			Integration: mattermost.Integration{
				URL:     s.botURL + "/api/izin/list",
				Context: map[string]any{"action": "list"},
			},
		}}},
	}
}

// Start admits a leave and announces it in the channel with a DONE button.
func (s *LeaveService) Start(ctx context.Context, channelID, rootID, userID, username, categoryName string) (string, error) {
	if username == "" {
		username = s.lookupName(ctx, userID)
	}

	req, err := s.engine.Admit(ctx, channelID, userID, categoryName, model.Routing{ThreadID: rootID, Username: username})
	if err != nil {
		return "", s.admitError(ctx, channelID, categoryName, err)
	}

	msg := i18n.T(ctx, "leave_started", map[string]any{
		"Name":     "@" + username,
		"Category": req.Category.DisplayName(),
		"Minutes":  minutes(req.Category.Duration),
	})
	post, err := s.mm.CreatePost(ctx, &mattermost.Post{
		ChannelID: channelID,
		RootID:    rootID,
		Message:   msg,
		Props: mattermost.Props{Attachments: []mattermost.Attachment{{
			Color: colorActive,
			Actions: []mattermost.Action{
				{
					Name:  i18n.T(ctx, "button_done"),
					Type:  "button",
					Style: "success",
					Integration: mattermost.Integration{
						URL:     s.botURL + "/api/izin/done",
						Context: map[string]any{"member_id": userID},
					},
				},
				{
					Name: i18n.T(ctx, "button_cancel"),
					Type: "button",
					Integration: mattermost.Integration{
						URL:     s.botURL + "/api/izin/cancel",
						Context: map[string]any{"member_id": userID},
					},
				},
			},
		}}},
	})
	if err != nil {
		// The leave stands; the member can still finish it with the slash command.
		s.logger.Warn().Err(err).Str("channel_id", channelID).Str("member_id", userID).Msg("announce leave")
		return msg, nil
	}
	s.trackAnnouncement(channelID, req, post.ID)
	return msg, nil
}

// trackAnnouncement remembers the post carrying the leave's buttons so
// MarkExpired can retire them. A leave that already ended is not tracked.
func (s *LeaveService) trackAnnouncement(channelID string, req model.LeaveRequest, postID string) {
	s.mu.Lock()
	s.announcements[req.ID] = postID
	s.mu.Unlock()

	if cur, ok := s.engine.Store().Get(channelID, req.MemberID); !ok || cur.ID != req.ID {
		s.takeAnnouncement(req.ID)
	}
}

func (s *LeaveService) takeAnnouncement(requestID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	postID, ok := s.announcements[requestID]
	delete(s.announcements, requestID)
	return postID, ok
}

// MarkExpired rewrites the announcement of an expired leave so its DONE and
// Cancel buttons disappear.
func (s *LeaveService) MarkExpired(ctx context.Context, req model.LeaveRequest) {
	postID, ok := s.takeAnnouncement(req.ID)
	if !ok {
		return
	}
	msg := i18n.T(ctx, "leave_expired_post", map[string]any{
		"Name":     "@" + req.MemberName(),
		"Category": req.Category.DisplayName(),
		"Minutes":  minutes(req.Category.Duration),
	})
	_, err := s.mm.UpdatePost(ctx, postID, &mattermost.Post{
		ChannelID: req.GroupID,
		Message:   msg,
		Props:     mattermost.Props{Attachments: []mattermost.Attachment{{Color: colorExpired}}},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("post_id", postID).Str("member_id", req.MemberID).Msg("retire leave announcement")
	}
}

func (s *LeaveService) admitError(ctx context.Context, channelID, categoryName string, err error) error {
	var capErr *leave.CapacityError
	switch {
	case errors.Is(err, leave.ErrUnknownCategory):
		return &UserError{Text: i18n.T(ctx, "leave_unknown_category", map[string]any{"Category": categoryName}), Err: err}
	case errors.Is(err, leave.ErrAlreadyActive):
		return &UserError{Text: i18n.T(ctx, "leave_already_active"), Err: err}
	case errors.As(err, &capErr):
		names := make([]string, 0, len(capErr.Holders))
		for _, id := range capErr.Holders {
			names = append(names, "@"+s.holderName(ctx, channelID, id))
		}
		return &UserError{Text: i18n.T(ctx, "leave_capacity_exhausted", map[string]any{"Names": strings.Join(names, ", ")}), Err: err}
	default:
		return fmt.Errorf("admit leave: %w", err)
	}
}

// Done completes the member's leave. postID is the announcement the DONE
// button belongs to; the welcome-back reply is threaded under it.
func (s *LeaveService) Done(ctx context.Context, channelID, postID, memberID, requesterID string) (string, error) {
	res, err := s.engine.Complete(ctx, channelID, memberID, requesterID)
	switch {
	case errors.Is(err, leave.ErrNotAuthorized):
		return "", &UserError{Text: i18n.T(ctx, "leave_not_authorized"), Err: err}
	case errors.Is(err, leave.ErrNoActiveRequest):
		return "", &UserError{Text: i18n.T(ctx, "leave_no_active"), Err: err}
	case err != nil:
		return "", fmt.Errorf("complete leave: %w", err)
	}
	s.takeAnnouncement(res.Request.ID)

	name := "@" + res.Request.MemberName()
	msg := i18n.T(ctx, "leave_done_on_time", map[string]any{"Name": name})
	if res.Late() {
		msg = i18n.T(ctx, "leave_done_late", map[string]any{"Name": name, "Late": res.Lateness.Round(time.Second).String()})
	}

	rootID := postID
	if rootID == "" {
		rootID = res.Request.Routing.ThreadID
	}
	if _, err := s.mm.CreatePost(ctx, &mattermost.Post{ChannelID: channelID, RootID: rootID, Message: msg}); err != nil {
		s.logger.Warn().Err(err).Str("channel_id", channelID).Str("member_id", memberID).Msg("announce return")
	}
	return msg, nil
}

// Cancel withdraws the member's own leave.
func (s *LeaveService) Cancel(ctx context.Context, channelID, memberID, requesterID string) (string, error) {
	if requesterID != memberID {
		return "", &UserError{Text: i18n.T(ctx, "leave_not_authorized"), Err: leave.ErrNotAuthorized}
	}
	req, ok := s.engine.Cancel(ctx, channelID, memberID)
	if !ok {
		return "", &UserError{Text: i18n.T(ctx, "leave_nothing_to_cancel"), Err: leave.ErrNoActiveRequest}
	}
	s.takeAnnouncement(req.ID)
	return i18n.T(ctx, "leave_cancelled", map[string]any{
		"Name":     "@" + req.MemberName(),
		"Category": req.Category.DisplayName(),
	}), nil
}

// Active returns the channel's active leaves.
func (s *LeaveService) Active(channelID string) []leave.ActiveLeave {
	return slices.Collect(s.engine.ListActive(channelID))
}

// List renders the channel's active leaves as a markdown table.
func (s *LeaveService) List(ctx context.Context, channelID string) string {
	rows := s.Active(channelID)
	if len(rows) == 0 {
		return i18n.T(ctx, "list_empty")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "#### %s\n| %s | %s | %s |\n|:--|:--|:--|\n",
		i18n.T(ctx, "list_title"), i18n.T(ctx, "list_member"), i18n.T(ctx, "list_category"), i18n.T(ctx, "list_remaining"))
	for _, r := range rows {
		name := r.Username
		if name == "" {
			name = r.MemberID
		}
		fmt.Fprintf(&b, "| @%s | %s | %s |\n", name, r.Category.DisplayName(), r.Remaining.Round(time.Second))
	}
	return strings.TrimRight(b.String(), "\n")
}

// EscalationMessage renders the overseer DM in the default locale.
func (s *LeaveService) EscalationMessage(ctx context.Context, req model.LeaveRequest, notifiedAt time.Time) string {
	return i18n.T(ctx, "leave_escalation", map[string]any{
		"Name":     "@" + req.MemberName(),
		"Category": req.Category.DisplayName(),
		"Minutes":  minutes(req.Category.Duration),
		"Time":     notifiedAt.Format("15:04"),
	})
}

func (s *LeaveService) holderName(ctx context.Context, channelID, memberID string) string {
	if req, ok := s.engine.Store().Get(channelID, memberID); ok && req.Routing.Username != "" {
		return req.Routing.Username
	}
	return s.lookupName(ctx, memberID)
}

func (s *LeaveService) lookupName(ctx context.Context, userID string) string {
	user, err := s.mm.GetUser(ctx, userID)
	if err != nil {
		s.logger.Debug().Err(err).Str("user_id", userID).Msg("lookup username")
		return userID
	}
	return user.Username
}

func minutes(d time.Duration) int {
	return int(d.Round(time.Minute) / time.Minute)
}
