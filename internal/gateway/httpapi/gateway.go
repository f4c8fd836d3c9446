// Package httpapi implements gateway.Gateway over the notification REST API.
package httpapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/inbox/internal/gateway"
	"github.com/nhle/inbox/internal/model"
)

const apiPrefix = "/api/v1"

// Gateway implements gateway.Gateway against the REST endpoints served by
// `inbox serve` or any compatible backend.
type Gateway struct {
	client *Client
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates a Gateway for the server at baseURL using token for
// Bearer authentication.
func New(baseURL, token string) *Gateway {
	return &Gateway{client: NewClient(baseURL, token)}
}

// List fetches one page of the user's notifications.
func (g *Gateway) List(
	ctx context.Context,
	userID string,
	opts gateway.ListOptions,
) ([]model.Notification, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.UnreadOnly {
		q.Set("unread_only", "true")
	}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}

	path := userPath(userID, "notifications")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListResponse
	if err := g.client.Get(ctx, "list", path, &resp); err != nil {
		return nil, fmt.Errorf("listing notifications for %s: %w", userID, err)
	}
	return resp.Notifications, nil
}

// UnreadCount fetches the authoritative unread count.
func (g *Gateway) UnreadCount(ctx context.Context, userID string) (int, error) {
	var resp CountResponse
	if err := g.client.Get(ctx, "unread-count", userPath(userID, "notifications/unread-count"), &resp); err != nil {
		return 0, fmt.Errorf("fetching unread count for %s: %w", userID, err)
	}
	return resp.Count, nil
}

// Create posts a new notification.
func (g *Gateway) Create(
	ctx context.Context,
	opts model.CreateOptions,
) (*model.Notification, error) {
	var resp NotificationResponse
	if err := g.client.Post(ctx, "create", apiPrefix+"/notifications", opts, &resp); err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return &resp.Notification, nil
}

// CreateFromTemplate asks the server to render and store a templated
// notification.
func (g *Gateway) CreateFromTemplate(
	ctx context.Context,
	templateName string,
	userID string,
	vars map[string]string,
	opts model.TemplateOptions,
) (*model.Notification, error) {
	req := model.TemplateRequest{
		Template:        templateName,
		UserID:          userID,
		Variables:       vars,
		TemplateOptions: opts,
	}

	var resp NotificationResponse
	if err := g.client.Post(ctx, "create-from-template", apiPrefix+"/notifications/template", req, &resp); err != nil {
		return nil, fmt.Errorf("creating notification from template %q: %w", templateName, err)
	}
	return &resp.Notification, nil
}

// MarkRead marks one notification read.
func (g *Gateway) MarkRead(ctx context.Context, notificationID string) (bool, error) {
	var resp OKResponse
	path := apiPrefix + "/notifications/" + url.PathEscape(notificationID) + "/read"
	if err := g.client.Put(ctx, "mark-read", path, &resp); err != nil {
		return false, fmt.Errorf("marking %s read: %w", notificationID, err)
	}
	return resp.OK, nil
}

// MarkAllRead marks all of the user's notifications read.
func (g *Gateway) MarkAllRead(ctx context.Context, userID string) (bool, error) {
	var resp OKResponse
	if err := g.client.Put(ctx, "mark-all-read", userPath(userID, "notifications/read-all"), &resp); err != nil {
		return false, fmt.Errorf("marking all read for %s: %w", userID, err)
	}
	return resp.OK, nil
}

// Delete removes one notification.
func (g *Gateway) Delete(ctx context.Context, notificationID string) (bool, error) {
	var resp OKResponse
	path := apiPrefix + "/notifications/" + url.PathEscape(notificationID)
	if err := g.client.Delete(ctx, "delete", path, &resp); err != nil {
		return false, fmt.Errorf("deleting %s: %w", notificationID, err)
	}
	return resp.OK, nil
}

func userPath(userID, rest string) string {
	return apiPrefix + "/users/" + url.PathEscape(userID) + "/" + rest
}
