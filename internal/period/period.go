package period

import (
	"fmt"
	"time"
)

// WAT — фиксированный локальный часовой пояс (Africa/Lagos, UTC+1, без перехода
// на летнее время). Все календарные границы считаются в нем.
var WAT = time.FixedZone("WAT", 1*60*60)

// Kind представляет тип календарного периода
type Kind string

const (
	KindDay   Kind = "day"
	KindWeek  Kind = "week"
	KindMonth Kind = "month"
)

// IsValid проверяет корректность типа периода
func (k Kind) IsValid() bool {
	switch k {
	case KindDay, KindWeek, KindMonth:
		return true
	default:
		return false
	}
}

// Window представляет полуоткрытый интервал [Start, End) в UTC,
// соответствующий одному календарному периоду в WAT
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains проверяет, попадает ли момент времени в окно
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Day возвращает границы календарного дня WAT, содержащего момент now.
// Граница дня — локальная полночь.
func Day(now time.Time) Window {
	local := now.In(WAT)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, WAT)
	return Window{
		Start: start.UTC(),
		End:   start.AddDate(0, 0, 1).UTC(),
	}
}

// Week возвращает границы календарной недели WAT, содержащей момент now.
// Неделя начинается в понедельник с локальной полуночи.
func Week(now time.Time) Window {
	local := now.In(WAT)
	// Monday = 0 ... Sunday = 6
	daysSinceMonday := (int(local.Weekday()) + 6) % 7
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, WAT).
		AddDate(0, 0, -daysSinceMonday)
	return Window{
		Start: start.UTC(),
		End:   start.AddDate(0, 0, 7).UTC(),
	}
}

// Month возвращает границы календарного месяца WAT, содержащего момент now.
// time.Date нормализует месяц 13 в январь следующего года, поэтому переход
// через границу года не требует отдельной ветки.
func Month(now time.Time) Window {
	local := now.In(WAT)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, WAT)
	end := time.Date(local.Year(), local.Month()+1, 1, 0, 0, 0, 0, WAT)
	return Window{
		Start: start.UTC(),
		End:   end.UTC(),
	}
}

// WindowFor возвращает границы периода указанного типа, содержащего момент now
func WindowFor(kind Kind, now time.Time) (Window, error) {
	switch kind {
	case KindDay:
		return Day(now), nil
	case KindWeek:
		return Week(now), nil
	case KindMonth:
		return Month(now), nil
	default:
		return Window{}, fmt.Errorf("неизвестный тип периода: %s", kind)
	}
}
