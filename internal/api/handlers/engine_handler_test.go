package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

func newTestEngineHandler(engine *MockEngine) *EngineHandler {
	return NewEngineHandler(context.Background(), engine, utils.NewNopLogger())
}

func TestEngineHandler_GetStatus(t *testing.T) {
	handler := newTestEngineHandler(&MockEngine{running: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engine/status", nil)
	w := httptest.NewRecorder()
	handler.GetStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response EngineStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Running || response.DailyTradeCount != 3 || response.OpenPositions != 1 {
		t.Errorf("unexpected status: %+v", response.EngineStatus)
	}
	if response.Monitor.Checks != 10 || response.Monitor.Closed != 2 {
		t.Errorf("unexpected monitor stats: %+v", response.Monitor)
	}
}

func TestEngineHandler_RunCycle(t *testing.T) {
	tests := []struct {
		name         string
		engine       *MockEngine
		expectedCode int
		expectedErr  string
	}{
		{
			name: "success",
			engine: &MockEngine{report: &bot.CycleReport{
				CycleID: "c-1", Trigger: "manual", Outcome: bot.OutcomeNoOpportunities,
			}},
			expectedCode: http.StatusOK,
		},
		{
			name:         "cycle in progress",
			engine:       &MockEngine{runErr: bot.ErrCycleInProgress},
			expectedCode: http.StatusConflict,
			expectedErr:  CodeCycleInProgress,
		},
		{
			name:         "engine stopped",
			engine:       &MockEngine{runErr: fmt.Errorf("run now: %w", bot.ErrEngineStopped)},
			expectedCode: http.StatusConflict,
			expectedErr:  CodeEngineStopped,
		},
		{
			name:         "unexpected error",
			engine:       &MockEngine{runErr: errors.New("boom")},
			expectedCode: http.StatusInternalServerError,
			expectedErr:  CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestEngineHandler(tt.engine)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/engine/run", nil)
			w := httptest.NewRecorder()
			handler.RunCycle(w, req)

			if w.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, w.Code)
			}

			if tt.expectedErr != "" {
				var resp ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode error: %v", err)
				}
				if resp.Code != tt.expectedErr {
					t.Errorf("expected code %s, got %s", tt.expectedErr, resp.Code)
				}
				return
			}

			var report bot.CycleReport
			if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
				t.Fatalf("failed to decode report: %v", err)
			}
			if report.CycleID != "c-1" || report.Outcome != bot.OutcomeNoOpportunities {
				t.Errorf("unexpected report: %+v", report)
			}
		})
	}
}

func TestEngineHandler_StartStop(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "process")
	engine := &MockEngine{}
	handler := NewEngineHandler(base, engine, utils.NewNopLogger())

	w := httptest.NewRecorder()
	handler.StartEngine(w, httptest.NewRequest(http.MethodPost, "/api/v1/engine/start", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !engine.IsRunning() {
		t.Error("engine not started")
	}
	// планировщик живёт в контексте процесса, не запроса
	if engine.startCtx.Value(ctxKey{}) != "process" {
		t.Error("engine started with request context")
	}

	w = httptest.NewRecorder()
	handler.StopEngine(w, httptest.NewRequest(http.MethodPost, "/api/v1/engine/stop", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stop: expected status %d, got %d", http.StatusOK, w.Code)
	}
	if engine.IsRunning() || engine.stopCalls != 1 {
		t.Errorf("engine not stopped: running=%v calls=%d", engine.IsRunning(), engine.stopCalls)
	}
}

func TestEngineHandler_StartError(t *testing.T) {
	handler := newTestEngineHandler(&MockEngine{startErr: errors.New("no deps")})

	w := httptest.NewRecorder()
	handler.StartEngine(w, httptest.NewRequest(http.MethodPost, "/api/v1/engine/start", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestEngineHandler_GetActivity(t *testing.T) {
	entries := make([]models.ActivityEntry, 80)
	for i := range entries {
		entries[i] = models.ActivityEntry{CycleID: fmt.Sprintf("c-%d", i), Step: "monitor"}
	}

	tests := []struct {
		name          string
		query         string
		activity      []models.ActivityEntry
		expectedLimit int
		expectedTotal int
	}{
		{name: "default limit", query: "", activity: entries, expectedLimit: 50, expectedTotal: 50},
		{name: "explicit limit", query: "?limit=5", activity: entries, expectedLimit: 5, expectedTotal: 5},
		{name: "limit capped", query: "?limit=5000", activity: entries, expectedLimit: 1000, expectedTotal: 80},
		{name: "invalid limit", query: "?limit=abc", activity: entries, expectedLimit: 50, expectedTotal: 50},
		{name: "empty journal", query: "", activity: nil, expectedLimit: 50, expectedTotal: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &MockEngine{activity: tt.activity}
			handler := newTestEngineHandler(engine)

			w := httptest.NewRecorder()
			handler.GetActivity(w, httptest.NewRequest(http.MethodGet, "/api/v1/engine/activity"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			if engine.lastLimit != tt.expectedLimit {
				t.Errorf("expected limit %d, got %d", tt.expectedLimit, engine.lastLimit)
			}

			var response ActivityResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Total != tt.expectedTotal || len(response.Entries) != tt.expectedTotal {
				t.Errorf("expected %d entries, got total=%d len=%d", tt.expectedTotal, response.Total, len(response.Entries))
			}
			if response.Entries == nil {
				t.Error("entries must be an empty array, not null")
			}
		})
	}
}
