package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nhle/notification-sync/internal/model"
)

// Pagination is the paging metadata of a list response.
type Pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// NotificationPage is the response from GET /notifications.
type NotificationPage struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
	Pagination    Pagination           `json:"pagination"`
}

// unreadCountResponse is the response from GET /notifications/unread-count.
type unreadCountResponse struct {
	Count int `json:"count"`
}

// RegisterPushTokenRequest is the body of POST /notifications/push-token.
type RegisterPushTokenRequest struct {
	Token    string         `json:"token"`
	Platform model.Platform `json:"platform"`
	DeviceID string         `json:"deviceId,omitempty"`
}

type deregisterPushTokenRequest struct {
	Token string `json:"token"`
}

// FetchNotifications retrieves one page of the inbox, newest first.
func (c *Client) FetchNotifications(
	ctx context.Context,
	page int,
	limit int,
) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp NotificationPage
	if err := c.do(ctx, http.MethodGet, "/notifications?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching notifications page %d: %w", page, err)
	}
	if resp.Pagination.Page == 0 {
		resp.Pagination.Page = page
	}
	return &resp, nil
}

// UnreadCount returns the server's unread total.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp unreadCountResponse
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, &resp); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}
	return resp.Count, nil
}

// MarkRead marks a single notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := "/notifications/" + url.PathEscape(id) + "/read"
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every notification as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPut, "/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// DeleteNotification removes a notification from the inbox.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	path := "/notifications/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// RegisterPushToken registers a device push token for the current user.
func (c *Client) RegisterPushToken(ctx context.Context, req RegisterPushTokenRequest) error {
	if err := c.do(ctx, http.MethodPost, "/notifications/push-token", req, nil); err != nil {
		return fmt.Errorf("registering push token: %w", err)
	}
	return nil
}

// DeregisterPushToken removes a device push token.
func (c *Client) DeregisterPushToken(ctx context.Context, token string) error {
	body := deregisterPushTokenRequest{Token: token}
	if err := c.do(ctx, http.MethodDelete, "/notifications/push-token", body, nil); err != nil {
		return fmt.Errorf("deregistering push token: %w", err)
	}
	return nil
}

// Settings returns the user's notification preferences.
func (c *Client) Settings(ctx context.Context) (*model.NotificationSettings, error) {
	var s model.NotificationSettings
	if err := c.do(ctx, http.MethodGet, "/notifications/settings", nil, &s); err != nil {
		return nil, fmt.Errorf("fetching notification settings: %w", err)
	}
	return &s, nil
}

// UpdateSettings replaces the user's notification preferences and returns
// the stored result.
func (c *Client) UpdateSettings(
	ctx context.Context,
	s model.NotificationSettings,
) (*model.NotificationSettings, error) {
	var out model.NotificationSettings
	if err := c.do(ctx, http.MethodPut, "/notifications/settings", s, &out); err != nil {
		return nil, fmt.Errorf("updating notification settings: %w", err)
	}
	return &out, nil
}

// ProfileCompletion returns how complete the current user's profile is.
func (c *Client) ProfileCompletion(ctx context.Context) (*model.ProfileCompletion, error) {
	var pc model.ProfileCompletion
	if err := c.do(ctx, http.MethodGet, "/users/me/profile-completion", nil, &pc); err != nil {
		return nil, fmt.Errorf("fetching profile completion: %w", err)
	}
	return &pc, nil
}
