package facility

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sensitivity tunes future sensor processing. It is carried in settings and
// broadcast to observers but no automation logic reads it yet.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// WeekendMode is carried in settings but not consulted by automation.
type WeekendMode string

const (
	WeekendModeEnabled  WeekendMode = "enabled"
	WeekendModeDisabled WeekendMode = "disabled"
)

// ClockTime is a wall-clock time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses a 24-hour "HH:MM" string.
func ParseClockTime(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return ClockTime{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidClockTime, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("%w: hour in %q", ErrInvalidClockTime, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("%w: minute in %q", ErrInvalidClockTime, s)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// String formats the time as zero-padded "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Matches reports whether t falls inside this minute of the day.
func (c ClockTime) Matches(t time.Time) bool {
	return t.Hour() == c.Hour && t.Minute() == c.Minute
}

// MarshalJSON encodes the time as "HH:MM".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes an "HH:MM" string.
func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Settings are the process-wide automation tunables.
type Settings struct {
	InactivityMinutes int         `json:"inactivityMinutes"`
	AutoShutdownTime  ClockTime   `json:"autoShutdownTime"`
	Sensitivity       Sensitivity `json:"sensitivity"`
	WeekendMode       WeekendMode `json:"weekendMode"`
}

// InactivityWindow returns the inactivity timeout as a duration.
func (s Settings) InactivityWindow() time.Duration {
	return time.Duration(s.InactivityMinutes) * time.Minute
}

// Validate checks that every field holds a usable value.
func (s Settings) Validate() error {
	if s.InactivityMinutes <= 0 {
		return fmt.Errorf("%w: inactivityMinutes must be positive", ErrInvalidSettings)
	}
	if _, err := ParseClockTime(s.AutoShutdownTime.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if !ValidSensitivity(s.Sensitivity) {
		return fmt.Errorf("%w: unknown sensitivity %q", ErrInvalidSettings, s.Sensitivity)
	}
	if !ValidWeekendMode(s.WeekendMode) {
		return fmt.Errorf("%w: unknown weekendMode %q", ErrInvalidSettings, s.WeekendMode)
	}
	return nil
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
//
// Zero values are also treated as absent: an inactivity of 0 and an empty
// sensitivity or weekend mode do not overwrite the current value. Clients
// therefore cannot clear a field, only replace it.
type SettingsPatch struct {
	InactivityMinutes *int         `json:"inactivityMinutes,omitempty"`
	AutoShutdownTime  *ClockTime   `json:"autoShutdownTime,omitempty"`
	Sensitivity       *Sensitivity `json:"sensitivity,omitempty"`
	WeekendMode       *WeekendMode `json:"weekendMode,omitempty"`
}

// Apply returns s with the present fields of p applied, plus the JSON names
// of the fields that were actually changed.
func (p SettingsPatch) Apply(s Settings) (Settings, []string) {
	var changed []string

	if p.InactivityMinutes != nil && *p.InactivityMinutes > 0 {
		s.InactivityMinutes = *p.InactivityMinutes
		changed = append(changed, "inactivityMinutes")
	}
	// 00:00 is a real shutdown time, so a present ClockTime always applies.
	if p.AutoShutdownTime != nil {
		s.AutoShutdownTime = *p.AutoShutdownTime
		changed = append(changed, "autoShutdownTime")
	}
	if p.Sensitivity != nil && *p.Sensitivity != "" {
		s.Sensitivity = *p.Sensitivity
		changed = append(changed, "sensitivity")
	}
	if p.WeekendMode != nil && *p.WeekendMode != "" {
		s.WeekendMode = *p.WeekendMode
		changed = append(changed, "weekendMode")
	}

	return s, changed
}

// ValidSensitivity reports whether v is a known sensitivity.
func ValidSensitivity(v Sensitivity) bool {
	switch v {
	case SensitivityLow, SensitivityMedium, SensitivityHigh:
		return true
	}
	return false
}

// ValidWeekendMode reports whether v is a known weekend mode.
func ValidWeekendMode(v WeekendMode) bool {
	switch v {
	case WeekendModeEnabled, WeekendModeDisabled:
		return true
	}
	return false
}

// ValidCategory reports whether v is a known appliance category.
func ValidCategory(v Category) bool {
	for _, c := range AllCategories() {
		if c == v {
			return true
		}
	}
	return false
}

// ValidPowerState reports whether v is "on" or "off".
func ValidPowerState(v PowerState) bool {
	return v == StateOn || v == StateOff
}
