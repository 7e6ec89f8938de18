package period

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var yearRE = regexp.MustCompile(`^\d{4}$`)

var monthLayouts = []string{
	"01",
	"1",
	"January",
	"Jan",
}

// ErrInvalid is returned for year/month values that cannot name a period.
var ErrInvalid = errors.New("invalid period")

// Period identifies one monthly measurement snapshot.
type Period struct {
	Year  int
	Month time.Month
}

func Parse(year, month string) (Period, error) {
	y, err := ParseYear(year)
	if err != nil {
		return Period{}, err
	}
	m, err := ParseMonth(month)
	if err != nil {
		return Period{}, err
	}
	return Period{Year: y, Month: m}, nil
}

func ParseYear(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: year is required", ErrInvalid)
	}
	if !yearRE.MatchString(trimmed) {
		return 0, fmt.Errorf("%w: year %q must have four digits", ErrInvalid, trimmed)
	}
	y, _ := strconv.Atoi(trimmed)
	return y, nil
}

func ParseMonth(value string) (time.Month, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: month is required", ErrInvalid)
	}
	for _, layout := range monthLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return parsed.Month(), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown month %q", ErrInvalid, trimmed)
}

// Key is the file stem used by on-disk sources, e.g. "2024-01".
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// YearValue and MonthValue render the period the way the UI option lists do.
func (p Period) YearValue() string {
	return fmt.Sprintf("%04d", p.Year)
}

func (p Period) MonthValue() string {
	return fmt.Sprintf("%02d", int(p.Month))
}

func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}
