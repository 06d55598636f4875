package fiscal

import "time"

// YearStatus enumerates fiscal year states. A closed year never reopens.
type YearStatus string

const (
	YearStatusOpen   YearStatus = "open"
	YearStatusClosed YearStatus = "closed"
)

// PeriodStatus enumerates fiscal period states.
type PeriodStatus string

const (
	PeriodStatusOpen      PeriodStatus = "open"
	PeriodStatusAdjusting PeriodStatus = "adjusting"
	PeriodStatusClosed    PeriodStatus = "closed"
)

// FiscalYear represents one accounting year.
type FiscalYear struct {
	ID        int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Status    YearStatus
	IsCurrent bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FiscalPeriod represents a sub-year posting window owned by a FiscalYear.
type FiscalPeriod struct {
	ID           int64
	FiscalYearID int64
	Name         string
	PeriodNumber int
	StartDate    time.Time
	EndDate      time.Time
	Status       PeriodStatus
	IsAdjusting  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsPostable reports whether the period accepts new journal entries.
func (p FiscalPeriod) IsPostable() bool {
	return p.Status == PeriodStatusOpen || p.Status == PeriodStatusAdjusting
}

// Contains reports whether the date falls inside the period window (inclusive).
func (p FiscalPeriod) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}
