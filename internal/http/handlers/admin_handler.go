// Package handlers – admin handlers
//
// The admin surface triggers and inspects the notification machinery: a manual
// reminder pass, a test send to verify a user's WhatsApp wiring, and the audit
// trail of everything that was sent to a user. These endpoints are operator
// tools; they return the JSON envelope conventions shared by the whole API.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-remind-backend/internal/domain"
	"github.com/tbourn/go-remind-backend/internal/http/middleware"
	"github.com/tbourn/go-remind-backend/internal/repo"
	"github.com/tbourn/go-remind-backend/internal/services"
)

// notificationsPageSize caps the audit rows returned per user.
const notificationsPageSize = 50

// Handler bundles the HTTP endpoints with their service dependencies.
type Handler struct {
	DB        *gorm.DB
	Reminder  *services.ReminderService
	RSVP      *services.RSVPService
	Assistant *services.AssistantService
	Notifier  *services.NotifierService
}

// New constructs a Handler with all endpoint dependencies.
func New(db *gorm.DB, reminder *services.ReminderService, rsvp *services.RSVPService, assistant *services.AssistantService, notifier *services.NotifierService) *Handler {
	return &Handler{DB: db, Reminder: reminder, RSVP: rsvp, Assistant: assistant, Notifier: notifier}
}

// CheckNotifications handles GET /check-notifications: it runs one reminder
// pass immediately, the same pass the daily loop runs.
func (h *Handler) CheckNotifications(c *gin.Context) {
	res, err := h.Reminder.RunCheck(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCheckFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{
		"status":  "success",
		"message": "Manual notification check completed. Check server logs for details.",
		"result":  res,
	})
}

// TestNotification handles GET /test-notification/:id: it sends a fixed test
// message to the user's registered WhatsApp number.
func (h *Handler) TestNotification(c *gin.Context) {
	userID := c.Param("id")

	profile, err := repo.GetProfile(c.Request.Context(), h.DB, userID)
	if err != nil || profile.PhoneNumber == "" {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "User not found or no phone number")
		return
	}

	name := profile.FullName
	if name == "" {
		name = "User"
	}
	body := fmt.Sprintf(
		"🔔 Test Notification\n\nHi %s!\n\nThis is a test message from RemindMe to verify WhatsApp notifications are working correctly.\n\nIf you received this message, your notifications are set up properly! 🎉",
		name,
	)

	if err := h.Notifier.Send(c.Request.Context(), userID, nil, domain.NotificationTest, profile.PhoneNumber, body); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSendFailed, "Failed to send test notification")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"status":  "success",
		"message": "Test notification sent to " + profile.PhoneNumber,
	})
}

// notificationItem is the audit row shape returned by ListNotifications.
type notificationItem struct {
	ID             string    `json:"id"`
	EventID        *string   `json:"event_id"`
	Type           string    `json:"notification_type"`
	Content        string    `json:"notification_content"`
	PhoneNumber    string    `json:"phone_number"`
	DeliveryStatus string    `json:"delivery_status"`
	SentAt         time.Time `json:"sent_at"`
}

// ListNotifications handles GET /notifications/:id: the newest 50 audit rows
// for a user.
func (h *Handler) ListNotifications(c *gin.Context) {
	userID := c.Param("id")
	lg := middleware.LoggerFrom(c)

	rows, err := repo.ListNotificationsPage(c.Request.Context(), h.DB, userID, 0, notificationsPageSize)
	if err != nil {
		lg.Error().Err(err).Str("user_id", userID).Msg("notification audit query failed")
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	items := make([]notificationItem, 0, len(rows))
	for _, n := range rows {
		items = append(items, notificationItem{
			ID:             n.ID,
			EventID:        n.EventID,
			Type:           n.Type,
			Content:        n.Content,
			PhoneNumber:    n.PhoneNumber,
			DeliveryStatus: n.DeliveryStatus,
			SentAt:         n.SentAt,
		})
	}
	ok(c, http.StatusOK, gin.H{
		"status":        "success",
		"notifications": items,
	})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "RemindMe Notification API with Scheduler and AI",
	})
}
