package bot

import "time"

// CycleState - состояние, которое торговый цикл переносит между запусками
//
// Мутируется только владельцем цикла (под cycleMu движка).
type CycleState struct {
	// DailyTradeCount пересчитывается в начале каждого цикла из БД
	// (авто-сделки, открытые с начала локального дня), но не ниже
	// сделок этого дня, учтённых в памяти
	DailyTradeCount int

	// LastTradeAt - время последней авто-сделки; при старте берётся из БД,
	// чтобы рестарт не обходил cooldown
	LastTradeAt *time.Time

	// CooldownUntil - момент окончания паузы после сделки
	CooldownUntil time.Time

	// RetryCounts - число повторов по ID возможности в текущем цикле
	RetryCounts map[int64]int
}

// NewCycleState создаёт пустое состояние
func NewCycleState() *CycleState {
	return &CycleState{RetryCounts: make(map[int64]int)}
}

// RecordTrade фиксирует успешную сделку: счётчик, время и cooldown
func (s *CycleState) RecordTrade(now time.Time, cooldown time.Duration) {
	t := now
	s.LastTradeAt = &t
	s.DailyTradeCount++
	s.CooldownUntil = now.Add(cooldown)
}

// SeedLastTrade восстанавливает время последней сделки после рестарта
func (s *CycleState) SeedLastTrade(at time.Time, cooldown time.Duration) {
	if at.IsZero() {
		return
	}
	if s.LastTradeAt != nil && !at.After(*s.LastTradeAt) {
		return
	}
	t := at
	s.LastTradeAt = &t
	s.CooldownUntil = at.Add(cooldown)
}

// InCooldown проверяет активную паузу; истёкшая пауза сбрасывается
func (s *CycleState) InCooldown(now time.Time) bool {
	if s.CooldownUntil.IsZero() {
		return false
	}
	if !now.Before(s.CooldownUntil) {
		s.CooldownUntil = time.Time{}
		return false
	}
	return true
}

// ClearRetries сбрасывает счётчик повторов возможности
func (s *CycleState) ClearRetries(opportunityID int64) {
	delete(s.RetryCounts, opportunityID)
}

// SyncDailyCount принимает счётчик из БД за день, начинающийся в dayStart
//
// Исполненная, но не записанная сделка есть только в памяти: в пределах дня
// счётчик не уменьшается. С новым днём берётся значение из БД.
func (s *CycleState) SyncDailyCount(persisted int, dayStart time.Time) {
	if s.LastTradeAt != nil && !s.LastTradeAt.Before(dayStart) && s.DailyTradeCount > persisted {
		return
	}
	s.DailyTradeCount = persisted
}
