package httpapi

import "github.com/nhle/inbox/internal/model"

// ListResponse is the body returned by the list endpoint.
type ListResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

// CountResponse is the body returned by the unread-count endpoint.
type CountResponse struct {
	Count int `json:"count"`
}

// NotificationResponse wraps a single created notification.
type NotificationResponse struct {
	Notification model.Notification `json:"notification"`
}

// OKResponse is the body returned by mutation endpoints.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the body returned with any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
