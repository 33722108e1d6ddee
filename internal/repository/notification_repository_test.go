package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"autotrader/internal/models"
)

// ============================================================
// NotificationRepository Tests
// ============================================================

var notificationRowColumns = []string{"id", "timestamp", "type", "severity", "trade_id", "opportunity_id", "message", "meta"}

func TestNewNotificationRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewNotificationRepository(db)
	if repo == nil {
		t.Fatal("NewNotificationRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestNotificationRepositoryCreate(t *testing.T) {
	now := time.Now()
	tradeID := int64(12)
	oppID := int64(7)

	tests := []struct {
		name        string
		notif       *models.Notification
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success without meta",
			notif: &models.Notification{
				Timestamp:     now,
				Type:          models.NotificationTypeTradeExecuted,
				Severity:      models.SeverityInfo,
				TradeID:       &tradeID,
				OpportunityID: &oppID,
				Message:       "Position opened",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO notifications`).
					WithArgs(now, models.NotificationTypeTradeExecuted, models.SeverityInfo, &tradeID, &oppID, "Position opened", []byte(nil)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			expectError: false,
		},
		{
			name: "success with meta",
			notif: &models.Notification{
				Timestamp: now,
				Type:      models.NotificationTypeLimitReached,
				Severity:  models.SeverityWarn,
				Message:   "Daily limit reached",
				Meta:      map[string]interface{}{"reason": "daily_limit"},
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO notifications`).
					WithArgs(now, models.NotificationTypeLimitReached, models.SeverityWarn, (*int64)(nil), (*int64)(nil),
						"Daily limit reached", []byte(`{"reason":"daily_limit"}`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
			},
			expectError: false,
		},
		{
			name: "database error",
			notif: &models.Notification{
				Type:     models.NotificationTypeExecutionError,
				Severity: models.SeverityError,
				Message:  "Order rejected",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO notifications`).
					WithArgs(sqlmock.AnyArg(), models.NotificationTypeExecutionError, models.SeverityError, (*int64)(nil), (*int64)(nil), "Order rejected", []byte(nil)).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewNotificationRepository(db)
			err = repo.Create(tt.notif)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if tt.notif.ID == 0 {
					t.Error("expected ID to be set")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestNotificationRepositoryGetRecent(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(notificationRowColumns).
		AddRow(2, now, models.NotificationTypePositionClosed, models.SeverityInfo, 5, 3, "Position closed", []byte(`{"reason":"take_profit"}`)).
		AddRow(1, now.Add(-time.Hour), models.NotificationTypeTradeExecuted, models.SeverityInfo, 5, 3, "Position opened", nil)
	mock.ExpectQuery(`SELECT .+ FROM notifications ORDER BY timestamp DESC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(rows)

	repo := NewNotificationRepository(db)
	result, err := repo.GetRecent(10)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(result))
	}
	if result[0].Meta["reason"] != "take_profit" {
		t.Errorf("expected meta reason=take_profit, got %v", result[0].Meta["reason"])
	}
	if result[0].TradeID == nil || *result[0].TradeID != 5 {
		t.Errorf("expected TradeID=5, got %v", result[0].TradeID)
	}
	if result[1].Meta != nil {
		t.Errorf("expected nil meta, got %v", result[1].Meta)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestNotificationRepositoryGetByTypes(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		types     []string
		mockSetup func(mock sqlmock.Sqlmock)
	}{
		{
			name:  "filtered",
			types: []string{models.NotificationTypeLimitReached, models.NotificationTypeExecutionError},
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(notificationRowColumns).
					AddRow(3, now, models.NotificationTypeLimitReached, models.SeverityWarn, nil, nil, "Daily limit reached", nil)
				mock.ExpectQuery(`SELECT .+ FROM notifications WHERE type = ANY\(\$1\) ORDER BY timestamp DESC LIMIT \$2`).
					WithArgs(sqlmock.AnyArg(), 20).
					WillReturnRows(rows)
			},
		},
		{
			name:  "empty filter falls back to recent",
			types: nil,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(notificationRowColumns).
					AddRow(3, now, models.NotificationTypeLimitReached, models.SeverityWarn, nil, nil, "Daily limit reached", nil)
				mock.ExpectQuery(`SELECT .+ FROM notifications ORDER BY timestamp DESC LIMIT \$1`).
					WithArgs(20).
					WillReturnRows(rows)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewNotificationRepository(db)
			result, err := repo.GetByTypes(tt.types, 20)

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != 1 {
				t.Fatalf("expected 1 notification, got %d", len(result))
			}
			if result[0].TradeID != nil || result[0].OpportunityID != nil {
				t.Error("expected nil trade and opportunity IDs")
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestNotificationRepositoryDeleteOlderThan(t *testing.T) {
	threshold := time.Now().AddDate(0, 0, -30)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM notifications WHERE timestamp < \$1`).
		WithArgs(threshold).
		WillReturnResult(sqlmock.NewResult(0, 50))

	repo := NewNotificationRepository(db)
	deleted, err := repo.DeleteOlderThan(threshold)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if deleted != 50 {
		t.Errorf("expected 50 deleted, got %d", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
