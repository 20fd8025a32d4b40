package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OneShot     Period = "one_shot"
	Recursively Period = "recursively"
	Daily       Period = "daily"
	Weekly      Period = "weekly"
	Monthly     Period = "monthly"
	Yearly      Period = "yearly"
)

// Threshold bounds accepted at configuration time.
const (
	MinThreshold = 1
	MaxThreshold = 99
)

type (
	Period string

	// Bounds is the explicit window of a one_shot or recursively budget.
	// A zero Start or End means the bound was not configured.
	Bounds struct {
		Start time.Time
		End   time.Time
	}

	// Filters restricts the entries a budget accounts for. An empty slice
	// means no filter on that dimension.
	Filters struct {
		Accounts   []int64
		Categories []int64
		Types      []string
		Tags       []int64
	}

	Configuration struct {
		Period Period
		Bounds *Bounds // only for OneShot and Recursively
		Filters
	}

	Budget struct {
		ID           uuid.UUID
		WorkspaceID  int64
		Name         string
		Description  string
		Amount       decimal.Decimal
		Config       Configuration
		Notification bool
		Thresholds   []int
		Emails       []string
		DeletedAt    *time.Time
	}

	Entry struct {
		ID          int64
		WorkspaceID int64
		Amount      decimal.Decimal // negative = expense
		AccountID   int64
		CategoryID  int64
		Type        string
		Tags        []int64
		Timestamp   time.Time
		DeletedAt   *time.Time
	}

	// EntryAmount is the projection the entry store returns for aggregation.
	EntryAmount struct {
		ID     int64
		Amount decimal.Decimal
	}
)

var (
	ErrInvalidConfiguration = errors.New("invalid budget configuration")
	ErrNotFound             = errors.New("budget not found")
	ErrDivisionUndefined    = errors.New("percentage undefined for zero budget amount")
	ErrTransportFailure     = errors.New("notification transport failure")
	ErrInvalidThreshold     = errors.New("thresholds must be numbers between 1 and 99")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrEmptyName            = errors.New("empty budget name")
	ErrInvalidAmount        = errors.New("invalid amount")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsBounded reports whether the period takes its window from explicit bounds.
func (p Period) IsBounded() bool {
	return p == OneShot || p == Recursively
}

// IsKnown reports whether p is one of the recognized period kinds.
func (p Period) IsKnown() bool {
	switch p {
	case OneShot, Recursively, Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// NewBoundedConfiguration builds a one_shot or recursively configuration.
func NewBoundedConfiguration(p Period, start, end time.Time, f Filters) (Configuration, error) {
	if !p.IsBounded() {
		return Configuration{}, fmt.Errorf("%w: period %q does not take explicit bounds", ErrInvalidConfiguration, p)
	}
	if start.IsZero() || end.IsZero() {
		return Configuration{}, fmt.Errorf("%w: period_start and period_end are required for %s", ErrInvalidConfiguration, p)
	}
	if start.After(end) {
		return Configuration{}, fmt.Errorf("%w: period_start is after period_end", ErrInvalidConfiguration)
	}
	return Configuration{Period: p, Bounds: &Bounds{Start: start, End: end}, Filters: f}, nil
}

// NewRollingConfiguration builds a daily, weekly, monthly or yearly configuration.
func NewRollingConfiguration(p Period, f Filters) Configuration {
	return Configuration{Period: p, Filters: f}
}

type configurationJSON struct {
	Period      Period   `json:"period"`
	PeriodStart string   `json:"period_start,omitempty"`
	PeriodEnd   string   `json:"period_end,omitempty"`
	Accounts    []int64  `json:"accounts,omitempty"`
	Categories  []int64  `json:"categories,omitempty"`
	Types       []string `json:"types,omitempty"`
	Tags        []int64  `json:"tags,omitempty"`
}

var configTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate reads a configuration or fixture timestamp. Values without a zone
// are UTC; an empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	return parseConfigTime(s)
}

func parseConfigTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range configTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", ErrInvalidConfiguration, s)
}

// MarshalJSON writes the stored configuration blob.
func (c Configuration) MarshalJSON() ([]byte, error) {
	raw := configurationJSON{
		Period:     c.Period,
		Accounts:   c.Accounts,
		Categories: c.Categories,
		Types:      c.Types,
		Tags:       c.Tags,
	}
	if c.Bounds != nil {
		if !c.Bounds.Start.IsZero() {
			raw.PeriodStart = c.Bounds.Start.Format(time.RFC3339Nano)
		}
		if !c.Bounds.End.IsZero() {
			raw.PeriodEnd = c.Bounds.End.Format(time.RFC3339Nano)
		}
	}
	return json.Marshal(raw)
}

// UnmarshalJSON reads the stored configuration blob. Bounds are kept only for
// bounded periods; missing or contradictory bounds are left for the period
// resolver to reject.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	var raw configurationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	cfg := Configuration{
		Period: Period(strings.ToLower(strings.TrimSpace(string(raw.Period)))),
		Filters: Filters{
			Accounts:   raw.Accounts,
			Categories: raw.Categories,
			Types:      raw.Types,
			Tags:       raw.Tags,
		},
	}

	if cfg.Period.IsBounded() {
		start, err := parseConfigTime(raw.PeriodStart)
		if err != nil {
			return err
		}
		end, err := parseConfigTime(raw.PeriodEnd)
		if err != nil {
			return err
		}
		if !start.IsZero() || !end.IsZero() {
			cfg.Bounds = &Bounds{Start: start, End: end}
		}
	}

	*c = cfg
	return nil
}

// IsDeleted reports whether the budget has been soft-deleted.
func (b Budget) IsDeleted() bool {
	return b.DeletedAt != nil
}

// HasRecipients reports whether any notification address is configured.
func (b Budget) HasRecipients() bool {
	for _, e := range b.Emails {
		if strings.TrimSpace(e) != "" {
			return true
		}
	}
	return false
}

// Validate checks the fields the configuration boundary is responsible for.
// Every problem is reported, not just the first one.
func (b Budget) Validate() error {
	var errs []error

	if strings.TrimSpace(b.Name) == "" {
		errs = append(errs, ErrEmptyName)
	}

	for _, t := range b.Thresholds {
		if t < MinThreshold || t > MaxThreshold {
			errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidThreshold, t))
			break
		}
	}

	for _, email := range b.Emails {
		if !emailRegex.MatchString(email) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidEmail, email))
		}
	}

	if !b.Config.Period.IsKnown() {
		errs = append(errs, fmt.Errorf("%w: unknown period %q", ErrInvalidConfiguration, b.Config.Period))
	} else if b.Config.Period.IsBounded() {
		if _, err := NewBoundedConfiguration(b.Config.Period, boundStart(b.Config), boundEnd(b.Config), b.Config.Filters); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func boundStart(c Configuration) time.Time {
	if c.Bounds == nil {
		return time.Time{}
	}
	return c.Bounds.Start
}

func boundEnd(c Configuration) time.Time {
	if c.Bounds == nil {
		return time.Time{}
	}
	return c.Bounds.End
}
