package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/notification-sync/internal/api"
	"github.com/nhle/notification-sync/internal/model"
)

// recorded is one request seen by the test server.
type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

func newServer(t *testing.T, handler http.HandlerFunc) (*api.Client, <-chan recorded) {
	t.Helper()
	seen := make(chan recorded, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			body:   string(body),
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL + "/"), seen
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchNotifications(t *testing.T) {
	client, seen := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"notifications": []map[string]any{
				{"id": "n1", "type": "FOLLOW", "title": "Ana followed you", "isRead": false,
					"createdAt": "2026-03-01T12:00:00Z", "actor": map[string]any{"id": "u1", "username": "ana"}},
			},
			"unreadCount": 4,
			"pagination":  map[string]any{"page": 2, "totalPages": 3},
		})
	})
	client.SetToken("tok")

	page, err := client.FetchNotifications(context.Background(), 2, 20)
	require.NoError(t, err)

	req := <-seen
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/notifications", req.path)
	assert.Equal(t, "limit=20&page=2", req.query)
	assert.Equal(t, "Bearer tok", req.auth)

	require.Len(t, page.Notifications, 1)
	n := page.Notifications[0]
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, model.NotificationFollow, n.Type)
	require.NotNil(t, n.Actor)
	assert.Equal(t, "ana", n.Actor.Username)
	assert.Equal(t, 4, page.UnreadCount)
	assert.Equal(t, api.Pagination{Page: 2, TotalPages: 3}, page.Pagination)
}

func TestFetchNotificationsDefaultsPage(t *testing.T) {
	client, seen := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"notifications": []any{}})
	})

	page, err := client.FetchNotifications(context.Background(), 0, 0)
	require.NoError(t, err)

	assert.Equal(t, "page=1", (<-seen).query)
	assert.Equal(t, 1, page.Pagination.Page)
}

func TestNoTokenSendsNoAuthorization(t *testing.T) {
	client, seen := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"count": 3})
	})

	n, err := client.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	req := <-seen
	assert.Equal(t, "/notifications/unread-count", req.path)
	assert.Empty(t, req.auth)
}

func TestEndpoints(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func(c *api.Client) error
		method string
		path   string
		body   string
	}{
		{
			name:   "mark read",
			call:   func(c *api.Client) error { return c.MarkRead(ctx, "n1") },
			method: http.MethodPut,
			path:   "/notifications/n1/read",
		},
		{
			name:   "mark all read",
			call:   func(c *api.Client) error { return c.MarkAllRead(ctx) },
			method: http.MethodPut,
			path:   "/notifications/read-all",
		},
		{
			name:   "delete",
			call:   func(c *api.Client) error { return c.DeleteNotification(ctx, "n2") },
			method: http.MethodDelete,
			path:   "/notifications/n2",
		},
		{
			name: "register push token",
			call: func(c *api.Client) error {
				return c.RegisterPushToken(ctx, api.RegisterPushTokenRequest{
					Token: "A", Platform: model.PlatformIOS, DeviceID: "dev",
				})
			},
			method: http.MethodPost,
			path:   "/notifications/push-token",
			body:   `{"token":"A","platform":"ios","deviceId":"dev"}`,
		},
		{
			name:   "deregister push token",
			call:   func(c *api.Client) error { return c.DeregisterPushToken(ctx, "A") },
			method: http.MethodDelete,
			path:   "/notifications/push-token",
			body:   `{"token":"A"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, seen := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			require.NoError(t, tt.call(client))

			req := <-seen
			assert.Equal(t, tt.method, req.method)
			assert.Equal(t, tt.path, req.path)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, req.body)
			}
		})
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	client, seen := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]bool{"pushEnabled": true, "likes": true})
			return
		}
		var s model.NotificationSettings
		_ = json.NewDecoder(r.Body).Decode(&s)
		writeJSON(w, http.StatusOK, s)
	})
	ctx := context.Background()

	s, err := client.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, s.PushEnabled)
	assert.True(t, s.Likes)
	assert.False(t, s.Follows)
	<-seen

	s.Follows = true
	out, err := client.UpdateSettings(ctx, *s)
	require.NoError(t, err)
	assert.True(t, out.Follows)

	req := <-seen
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/notifications/settings", req.path)
}

func TestProfileCompletion(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"percentage":    60,
			"missingFields": []string{"avatar", "bio"},
			"isComplete":    false,
		})
	})

	pc, err := client.ProfileCompletion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60, pc.Percentage)
	assert.Equal(t, []string{"avatar", "bio"}, pc.MissingFields)
	assert.False(t, pc.IsComplete)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		auth       bool
		network    bool
		validation bool
		message    string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, auth: true, message: "token expired"},
		{name: "forbidden", status: http.StatusForbidden, auth: true, message: "token expired"},
		{name: "not found", status: http.StatusNotFound, validation: true, message: "token expired"},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, validation: true, message: "token expired"},
		{name: "server error", status: http.StatusBadGateway, network: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]string{"message": "token expired"})
			})

			err := client.MarkRead(context.Background(), "n1")
			require.Error(t, err)

			assert.Equal(t, tt.auth, api.IsAuthError(err))
			assert.Equal(t, tt.network, api.IsNetworkError(err))
			assert.Equal(t, tt.validation, api.IsValidationError(err))
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestErrorMessageFallsBackToErrorField(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad page"})
	})

	_, err := client.FetchNotifications(context.Background(), 1, 20)

	var valErr *api.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "bad page", valErr.Message)
	assert.Equal(t, http.StatusBadRequest, valErr.StatusCode)
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := api.NewClient(url).UnreadCount(context.Background())
	assert.True(t, api.IsNetworkError(err))
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := api.NewClient(srv.URL, api.WithTimeout(50*time.Millisecond))
	_, err := client.UnreadCount(context.Background())
	assert.True(t, api.IsNetworkError(err))
}
