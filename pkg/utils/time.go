package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Используются движком для дневных лимитов (начало локального дня)
// и остатка cooldown.

// GetDayStartIn возвращает начало дня (00:00:00) для t в указанной зоне
//
// Дневной счётчик сделок сбрасывается по локальной полуночи,
// поэтому границу дня считаем в зоне из конфигурации, а не в UTC.
//
// Пример:
//
//	// t: 2024-01-15 02:30 Europe/Moscow (2024-01-14 23:30 UTC)
//	start := GetDayStartIn(t, moscow)
//	// start: 2024-01-15 00:00 Europe/Moscow
func GetDayStartIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// LoadLocation загружает часовой пояс, откатываясь на UTC при ошибке
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SecondsCeil округляет длительность вверх до целых секунд
//
// 0.2s остатка cooldown отображаются как 1s, а не 0s.
func SecondsCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
