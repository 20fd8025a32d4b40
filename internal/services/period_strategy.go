// Package services provides the budget accounting engine.
//
// This file resolves a budget's configured period into a concrete window.
// Each period kind has its own strategy; rolling kinds are computed from an
// injected instant so resolution is deterministic.
package services

import (
	"fmt"
	"sync"
	"time"

	"budgetcontrol/internal/core"
	"budgetcontrol/internal/log"
)

// WindowStrategy computes the window of one period kind at now.
type WindowStrategy interface {
	Window(cfg core.Configuration, now time.Time) (core.Window, error)
}

// DailyWindow spans the calendar day containing now.
type DailyWindow struct{}

func (DailyWindow) Window(_ core.Configuration, now time.Time) (core.Window, error) {
	y, m, d := now.Date()
	return span(time.Date(y, m, d, 0, 0, 0, 0, now.Location()), time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())), nil
}

// WeeklyWindow spans Monday 00:00 through the end of Sunday.
type WeeklyWindow struct{}

func (WeeklyWindow) Window(_ core.Configuration, now time.Time) (core.Window, error) {
	y, m, d := now.Date()
	offset := (int(now.Weekday()) + 6) % 7
	loc := now.Location()
	return span(time.Date(y, m, d-offset, 0, 0, 0, 0, loc), time.Date(y, m, d-offset+7, 0, 0, 0, 0, loc)), nil
}

// MonthlyWindow spans the calendar month containing now.
type MonthlyWindow struct{}

func (MonthlyWindow) Window(_ core.Configuration, now time.Time) (core.Window, error) {
	y, m, _ := now.Date()
	return span(time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), time.Date(y, m+1, 1, 0, 0, 0, 0, now.Location())), nil
}

// YearlyWindow spans the calendar year containing now.
type YearlyWindow struct{}

func (YearlyWindow) Window(_ core.Configuration, now time.Time) (core.Window, error) {
	y := now.Year()
	return span(time.Date(y, 1, 1, 0, 0, 0, 0, now.Location()), time.Date(y+1, 1, 1, 0, 0, 0, 0, now.Location())), nil
}

// BoundedWindow takes the configured bounds verbatim.
type BoundedWindow struct{}

func (BoundedWindow) Window(cfg core.Configuration, _ time.Time) (core.Window, error) {
	if cfg.Bounds == nil || cfg.Bounds.Start.IsZero() || cfg.Bounds.End.IsZero() {
		return core.Window{}, fmt.Errorf("%w: period_start and period_end are required for %s", core.ErrInvalidConfiguration, cfg.Period)
	}
	if cfg.Bounds.Start.After(cfg.Bounds.End) {
		return core.Window{}, fmt.Errorf("%w: period_start %s is after period_end %s",
			core.ErrInvalidConfiguration, cfg.Bounds.Start.Format(time.RFC3339), cfg.Bounds.End.Format(time.RFC3339))
	}
	return core.Window{Start: cfg.Bounds.Start, End: cfg.Bounds.End}, nil
}

// span turns a half-open [start, next) into the inclusive window ending one
// nanosecond before next.
func span(start, next time.Time) core.Window {
	return core.Window{Start: start, End: next.Add(-time.Nanosecond)}
}

var (
	strategiesMu     sync.RWMutex
	windowStrategies = map[core.Period]WindowStrategy{
		core.OneShot:     BoundedWindow{},
		core.Recursively: BoundedWindow{},
		core.Daily:       DailyWindow{},
		core.Weekly:      WeeklyWindow{},
		core.Monthly:     MonthlyWindow{},
		core.Yearly:      YearlyWindow{},
	}
)

// GetWindowStrategy returns the strategy registered for p.
func GetWindowStrategy(p core.Period) (WindowStrategy, error) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	s, ok := windowStrategies[p]
	if !ok {
		return nil, fmt.Errorf("%w: unknown period %q", core.ErrInvalidConfiguration, p)
	}
	return s, nil
}

// RegisterWindowStrategy adds or replaces the strategy for p.
func RegisterWindowStrategy(p core.Period, s WindowStrategy) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	windowStrategies[p] = s
}

// PeriodResolver resolves configurations into windows. Rolling windows are
// computed in Location when set, otherwise in the location of now.
//
// An unknown period kind resolves as monthly unless Strict is set, in which
// case it is rejected with core.ErrInvalidConfiguration.
type PeriodResolver struct {
	Strict   bool
	Location *time.Location
	logger   *log.Logger
}

func NewPeriodResolver(strict bool, loc *time.Location, logger *log.Logger) *PeriodResolver {
	if logger == nil {
		logger = log.Default()
	}
	return &PeriodResolver{Strict: strict, Location: loc, logger: logger.WithComponent(log.ComponentPeriod)}
}

// Resolve returns the window of cfg at now and whether it came from explicit bounds.
func (r *PeriodResolver) Resolve(cfg core.Configuration, now time.Time) (core.Window, bool, error) {
	if r.Location != nil {
		now = now.In(r.Location)
	}

	strategy, err := GetWindowStrategy(cfg.Period)
	if err != nil {
		if r.Strict {
			return core.Window{}, false, err
		}
		if r.logger != nil {
			r.logger.Warn("Unknown budget period, using monthly window", log.FieldPeriod, string(cfg.Period))
		}
		strategy = MonthlyWindow{}
	}

	w, err := strategy.Window(cfg, now)
	if err != nil {
		return core.Window{}, false, err
	}
	return w, cfg.Period.IsBounded(), nil
}
