package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/inbox/internal/gateway/httpapi"
	"github.com/nhle/inbox/internal/model"
	"github.com/nhle/inbox/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, httpapi.ErrorResponse{Error: msg})
}

// ownsPath rejects requests for another user's collection.
func ownsPath(c *gin.Context) (string, bool) {
	userID := c.Param("userId")
	if userID == "" {
		abortError(c, http.StatusBadRequest, "user id is required")
		return "", false
	}
	if authed := authUser(c); authed != "" && authed != userID {
		abortError(c, http.StatusForbidden, "cannot access another user's notifications")
		return "", false
	}
	return userID, true
}

// lookupOwned loads a notification by the :id param. A missing notification
// is reported with found=false; a foreign one aborts with 403.
func (s *Server) lookupOwned(c *gin.Context) (n *model.Notification, found, ok bool) {
	id := c.Param("id")
	n, err := s.store.GetNotificationByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, true
	}
	if err != nil {
		s.internalError(c, "loading notification", err)
		return nil, false, false
	}
	if authed := authUser(c); authed != "" && authed != n.UserID {
		abortError(c, http.StatusForbidden, "cannot access another user's notifications")
		return nil, false, false
	}
	return n, true, true
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
	abortError(c, http.StatusInternalServerError, "internal server error")
}

func parseListFilter(c *gin.Context, userID string) (store.NotificationFilter, error) {
	filter := store.NotificationFilter{UserID: userID, Limit: defaultListLimit, Type: c.Query("type")}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = min(n, maxListLimit)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	if v := c.Query("unread_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("unread_only must be a boolean")
		}
		filter.UnreadOnly = b
	}
	return filter, nil
}

func validPriority(p model.Priority) bool {
	switch p {
	case "", model.PriorityLow, model.PriorityNormal, model.PriorityHigh, model.PriorityUrgent:
		return true
	}
	return false
}

// handleList returns one page of a user's notifications, newest first.
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := ownsPath(c)
		if !ok {
			return
		}

		filter, err := parseListFilter(c, userID)
		if err != nil {
			abortError(c, http.StatusBadRequest, err.Error())
			return
		}
		filter.Now = s.clock.Now()

		items, err := s.store.GetNotifications(c.Request.Context(), filter)
		if err != nil {
			s.internalError(c, "listing notifications", err)
			return
		}

		c.JSON(http.StatusOK, httpapi.ListResponse{Notifications: items})
	}
}

// handleUnreadCount returns the number of live unread notifications.
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := ownsPath(c)
		if !ok {
			return
		}

		count, err := s.store.CountUnread(c.Request.Context(), userID, s.clock.Now())
		if err != nil {
			s.internalError(c, "counting unread notifications", err)
			return
		}

		c.JSON(http.StatusOK, httpapi.CountResponse{Count: count})
	}
}

// handleCreate stores a notification. With auth enabled an empty user_id
// defaults to the caller.
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.CreateOptions
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		s.create(c, req)
	}
}

// handleCreateFromTemplate renders a built-in template and stores the
// result.
func (s *Server) handleCreateFromTemplate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.TemplateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "invalid request body")
			return
		}

		tmpl, ok := Templates[req.Template]
		if !ok {
			abortError(c, http.StatusBadRequest,
				"unknown template "+strconv.Quote(req.Template)+"; available: "+strings.Join(TemplateNames(), ", "))
			return
		}

		opts, err := tmpl.CreateOptions(req)
		if err != nil {
			abortError(c, http.StatusBadRequest, err.Error())
			return
		}
		s.create(c, opts)
	}
}

func (s *Server) create(c *gin.Context, req model.CreateOptions) {
	if authed := authUser(c); authed != "" {
		if req.UserID == "" {
			req.UserID = authed
		} else if req.UserID != authed {
			abortError(c, http.StatusForbidden, "cannot create notifications for another user")
			return
		}
	}
	if strings.TrimSpace(req.UserID) == "" {
		abortError(c, http.StatusBadRequest, "user_id is required")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		abortError(c, http.StatusBadRequest, "title is required")
		return
	}
	if !validPriority(req.Priority) {
		abortError(c, http.StatusBadRequest, "priority must be one of low, normal, high, urgent")
		return
	}

	n, err := s.store.CreateNotification(c.Request.Context(), req)
	if err != nil {
		s.internalError(c, "creating notification", err)
		return
	}
	notificationsCreated.WithLabelValues(n.Type).Inc()

	s.logger.Info("notification created",
		zap.String("id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("type", n.Type),
	)
	c.JSON(http.StatusCreated, httpapi.NotificationResponse{Notification: n})
}

// handleMarkRead marks one notification read. Unknown ids answer ok=false.
func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, found, ok := s.lookupOwned(c)
		if !ok {
			return
		}
		if !found {
			c.JSON(http.StatusOK, httpapi.OKResponse{OK: false})
			return
		}

		exists, err := s.store.MarkNotificationRead(c.Request.Context(), n.ID, s.clock.Now())
		if err != nil {
			s.internalError(c, "marking notification read", err)
			return
		}
		if exists && !n.IsRead {
			notificationsRead.Inc()
		}

		c.JSON(http.StatusOK, httpapi.OKResponse{OK: exists})
	}
}

// handleMarkAllRead marks every unread notification of a user read.
func (s *Server) handleMarkAllRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := ownsPath(c)
		if !ok {
			return
		}

		changed, err := s.store.MarkAllNotificationsRead(c.Request.Context(), userID, s.clock.Now())
		if err != nil {
			s.internalError(c, "marking all notifications read", err)
			return
		}
		notificationsRead.Add(float64(changed))

		c.JSON(http.StatusOK, httpapi.OKResponse{OK: true})
	}
}

// handleDelete removes one notification. Unknown ids answer ok=false.
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, found, ok := s.lookupOwned(c)
		if !ok {
			return
		}
		if !found {
			c.JSON(http.StatusOK, httpapi.OKResponse{OK: false})
			return
		}

		deleted, err := s.store.DeleteNotification(c.Request.Context(), n.ID)
		if err != nil {
			s.internalError(c, "deleting notification", err)
			return
		}

		c.JSON(http.StatusOK, httpapi.OKResponse{OK: deleted})
	}
}
