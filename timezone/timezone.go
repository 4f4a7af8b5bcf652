// Package timezone переводит моменты UTC в настенное время IANA-зоны турнира и обратно.
// Все функции чистые, без ввода-вывода (кроме чтения базы зон самим пакетом time).
package timezone

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // база зон внутри бинарника: контейнеры часто без /usr/share/zoneinfo
)

var (
	ErrUnknownZone        = errors.New("unknown IANA time zone")
	ErrInvalidPlannedTime = errors.New("planned time must be in HH:MM format")
)

// Components - настенное время в зоне. Month 1-based, как time.Month.
type Components struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// LoadLocation оборачивает time.LoadLocation, приводя ошибку к ErrUnknownZone.
// Пустая строка не считается UTC: вызывающий должен сам подставить зону по умолчанию.
func LoadLocation(tz string) (*time.Location, error) {
	if strings.TrimSpace(tz) == "" {
		return nil, fmt.Errorf("%w: empty zone name", ErrUnknownZone)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnknownZone, tz, err)
	}
	return loc, nil
}

// ZonedComponents раскладывает момент instant на поля местного времени зоны tz.
func ZonedComponents(instant time.Time, tz string) (Components, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Components{}, err
	}
	return ZonedComponentsIn(instant, loc), nil
}

func ZonedComponentsIn(instant time.Time, loc *time.Location) Components {
	local := instant.In(loc)
	return Components{
		Year:   local.Year(),
		Month:  local.Month(),
		Day:    local.Day(),
		Hour:   local.Hour(),
		Minute: local.Minute(),
		Second: local.Second(),
	}
}

// UTCFromZoned - обратная операция к ZonedComponents.
func UTCFromZoned(year int, month time.Month, day, hour, minute int, tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	return UTCFromZonedIn(year, month, day, hour, minute, loc), nil
}

// UTCFromZonedIn берет смещение зоны в полдень UTC указанной даты и применяет его
// к запрошенному местному времени. В момент перехода на летнее/зимнее время
// результат может отличаться на величину сдвига.
func UTCFromZonedIn(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	guess := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	_, offset := guess.In(loc).Zone()
	literal := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	return literal.Add(-time.Duration(offset) * time.Second)
}

// ParseClock разбирает "HH:MM" (часы 0-23, минуты 0-59). Допускается "9:05".
func ParseClock(hhmm string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 || parts[0] == "" || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPlannedTime, hhmm)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPlannedTime, hhmm)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPlannedTime, hhmm)
	}
	return hour, minute, nil
}

// CombineDateAndTime берет только календарную дату dayInstant (в UTC, время суток игнорируется)
// и совмещает ее с местным временем hhmm зоны tz.
func CombineDateAndTime(dayInstant time.Time, hhmm string, tz string) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	return CombineDateAndTimeIn(dayInstant, hhmm, loc)
}

func CombineDateAndTimeIn(dayInstant time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := dayInstant.UTC().Date()
	return UTCFromZonedIn(y, m, d, hour, minute, loc), nil
}

// FormatForDisplay - строка для логов в формате es-CL ("20/10/2025 09:00").
// Не использовать для сравнений.
func FormatForDisplay(instant time.Time, tz string, includeTime bool) (string, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return "", err
	}
	if includeTime {
		return instant.In(loc).Format("02/01/2006 15:04"), nil
	}
	return instant.In(loc).Format("02/01/2006"), nil
}
