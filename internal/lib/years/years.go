// Package years содержит календарную арифметику для сроков подписок, выраженных в годах.
package years

import "time"

// AddYears прибавляет n календарных лет: меняется только год, месяц, день и время сохраняются.
// 29 февраля в невисокосном целевом году становится 28 февраля.
// time.AddDate в этом случае перешёл бы на 1 марта.
func AddYears(t time.Time, n int) time.Time {
	year := t.Year() + n
	day := t.Day()
	if t.Month() == time.February && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, t.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// GrantFrom возвращает конец нового периода, начинающегося в now: n лет и ещё один день запаса.
func GrantFrom(now time.Time, n int) time.Time {
	return AddYears(now, n).AddDate(0, 0, 1)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
