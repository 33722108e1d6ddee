package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"autotrader/internal/models"
)

// ============ NotificationHandler Tests ============

func TestNotificationHandler_GetNotifications(t *testing.T) {
	t.Run("returns empty list when no notifications", func(t *testing.T) {
		mockSvc := &MockNotificationReader{}
		handler := NewNotificationHandler(mockSvc)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
		w := httptest.NewRecorder()

		handler.GetNotifications(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetNotificationsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 0 {
			t.Errorf("expected total 0, got %d", response.Total)
		}
		if len(response.Notifications) != 0 {
			t.Errorf("expected 0 notifications, got %d", len(response.Notifications))
		}
		if mockSvc.lastLimit != 100 {
			t.Errorf("expected default limit 100, got %d", mockSvc.lastLimit)
		}
	})

	t.Run("returns existing notifications", func(t *testing.T) {
		mockSvc := &MockNotificationReader{}
		handler := NewNotificationHandler(mockSvc)

		mockSvc.add(models.NotificationTypeTradeExecuted, models.SeverityInfo, "Opened polymarket/m-1")
		mockSvc.add(models.NotificationTypePositionClosed, models.SeverityInfo, "Closed polymarket/m-1")
		mockSvc.add(models.NotificationTypeExecutionError, models.SeverityError, "gateway error")

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
		w := httptest.NewRecorder()

		handler.GetNotifications(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetNotificationsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 3 {
			t.Errorf("expected total 3, got %d", response.Total)
		}
		if response.Notifications[2].Severity != models.SeverityError {
			t.Errorf("expected severity error, got %s", response.Notifications[2].Severity)
		}
	})

	t.Run("filters by types", func(t *testing.T) {
		mockSvc := &MockNotificationReader{}
		handler := NewNotificationHandler(mockSvc)

		mockSvc.add(models.NotificationTypeTradeExecuted, models.SeverityInfo, "Opened")
		mockSvc.add(models.NotificationTypePositionClosed, models.SeverityInfo, "Closed")
		mockSvc.add(models.NotificationTypeLimitReached, models.SeverityWarn, "Limit")

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?types=trade_executed,%20position_closed", nil)
		w := httptest.NewRecorder()

		handler.GetNotifications(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response GetNotificationsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 2 {
			t.Errorf("expected total 2 (filtered), got %d", response.Total)
		}
		if len(mockSvc.lastTypes) != 2 || mockSvc.lastTypes[1] != models.NotificationTypePositionClosed {
			t.Errorf("types not normalized: %v", mockSvc.lastTypes)
		}
	})

	t.Run("respects limit parameter", func(t *testing.T) {
		mockSvc := &MockNotificationReader{}
		handler := NewNotificationHandler(mockSvc)

		for i := 0; i < 10; i++ {
			mockSvc.add(models.NotificationTypeTradeExecuted, models.SeverityInfo, "Notification")
		}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=5", nil)
		w := httptest.NewRecorder()

		handler.GetNotifications(w, req)

		var response GetNotificationsResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 5 {
			t.Errorf("expected total 5 (limited), got %d", response.Total)
		}
	})

	t.Run("service error", func(t *testing.T) {
		handler := NewNotificationHandler(&MockNotificationReader{err: errors.New("db down")})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
		w := httptest.NewRecorder()

		handler.GetNotifications(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}
