package bot

import (
	"sync"
	"time"

	"autotrader/internal/models"
)

// DefaultActivityLogSize - ёмкость журнала по умолчанию
const DefaultActivityLogSize = 200

// Уровни записей журнала
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// ActivityLog - кольцевой буфер шагов торгового цикла
//
// Хранит последние size записей; старые вытесняются.
type ActivityLog struct {
	entries []models.ActivityEntry
	next    int
	full    bool
	mu      sync.RWMutex
}

// NewActivityLog создаёт журнал заданной ёмкости
func NewActivityLog(size int) *ActivityLog {
	if size <= 0 {
		size = DefaultActivityLogSize
	}
	return &ActivityLog{entries: make([]models.ActivityEntry, size)}
}

// Add добавляет запись
func (l *ActivityLog) Add(entry models.ActivityEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}

	l.mu.Lock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()
}

// Len возвращает число записей
func (l *ActivityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Recent возвращает до limit последних записей, новые первыми
//
// limit <= 0 возвращает все.
func (l *ActivityLog) Recent(limit int) []models.ActivityEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = len(l.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]models.ActivityEntry, 0, limit)
	idx := l.next
	for i := 0; i < limit; i++ {
		idx--
		if idx < 0 {
			idx = len(l.entries) - 1
		}
		out = append(out, l.entries[idx])
	}
	return out
}
