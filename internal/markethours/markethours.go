// Package markethours gates scan cycles to configured trading sessions.
// The zero-config default is an always-open market, which is what crypto
// symbols want; equity and FX deployments configure sessions.
package markethours

import (
	"fmt"
	"time"
)

// Session is one daily trading window in the schedule's location.
type Session struct {
	Open  string `yaml:"open"`  // "09:15"
	Close string `yaml:"close"` // "15:30"
}

// Config describes a weekly schedule.
type Config struct {
	// Timezone is an IANA name, e.g. "Asia/Kolkata". Empty means UTC.
	Timezone string `yaml:"timezone"`
	// Sessions per day. Empty means open around the clock.
	Sessions []Session `yaml:"sessions"`
	// Weekdays trading happens on. Empty with sessions set means Mon-Fri.
	Weekdays []time.Weekday `yaml:"weekdays"`
	// Holidays as "2006-01-02" dates in the schedule's timezone.
	Holidays []string `yaml:"holidays"`
}

type window struct {
	openMin  int
	closeMin int
}

// Schedule answers open/closed questions for one market.
type Schedule struct {
	loc      *time.Location
	windows  []window
	weekdays map[time.Weekday]bool
	holidays map[string]bool
	always   bool
}

// New builds a schedule from config. A config with no sessions is an
// always-open schedule.
func New(cfg Config) (*Schedule, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("markethours: bad timezone %q: %w", cfg.Timezone, err)
		}
	}

	s := &Schedule{
		loc:      loc,
		weekdays: make(map[time.Weekday]bool),
		holidays: make(map[string]bool),
		always:   len(cfg.Sessions) == 0,
	}

	for _, sess := range cfg.Sessions {
		openMin, err := parseHM(sess.Open)
		if err != nil {
			return nil, fmt.Errorf("markethours: bad open %q: %w", sess.Open, err)
		}
		closeMin, err := parseHM(sess.Close)
		if err != nil {
			return nil, fmt.Errorf("markethours: bad close %q: %w", sess.Close, err)
		}
		if closeMin <= openMin {
			return nil, fmt.Errorf("markethours: session %s-%s closes before it opens", sess.Open, sess.Close)
		}
		s.windows = append(s.windows, window{openMin: openMin, closeMin: closeMin})
	}

	if len(cfg.Weekdays) > 0 {
		for _, wd := range cfg.Weekdays {
			s.weekdays[wd] = true
		}
	} else {
		for wd := time.Monday; wd <= time.Friday; wd++ {
			s.weekdays[wd] = true
		}
	}

	for _, h := range cfg.Holidays {
		if _, err := time.ParseInLocation("2006-01-02", h, loc); err != nil {
			return nil, fmt.Errorf("markethours: bad holiday %q: %w", h, err)
		}
		s.holidays[h] = true
	}

	return s, nil
}

// AlwaysOpen returns a 24/7 schedule.
func AlwaysOpen() *Schedule {
	s, _ := New(Config{})
	return s
}

// IsOpen reports whether t falls inside a trading session.
func (s *Schedule) IsOpen(t time.Time) bool {
	if s.always {
		return true
	}
	lt := t.In(s.loc)
	if !s.weekdays[lt.Weekday()] {
		return false
	}
	if s.holidays[lt.Format("2006-01-02")] {
		return false
	}
	hm := lt.Hour()*60 + lt.Minute()
	for _, w := range s.windows {
		if hm >= w.openMin && hm < w.closeMin {
			return true
		}
	}
	return false
}

// NextOpen returns the next session open at or after t. For an always-open
// schedule it returns t.
func (s *Schedule) NextOpen(t time.Time) time.Time {
	if s.always {
		return t
	}
	lt := t.In(s.loc)
	for day := 0; day < 14; day++ {
		d := lt.AddDate(0, 0, day)
		if !s.weekdays[d.Weekday()] || s.holidays[d.Format("2006-01-02")] {
			continue
		}
		if day == 0 && s.IsOpen(lt) {
			return lt
		}
		for _, w := range s.windows {
			open := time.Date(d.Year(), d.Month(), d.Day(), w.openMin/60, w.openMin%60, 0, 0, s.loc)
			if !open.Before(lt) {
				return open
			}
		}
	}
	// Unreachable with a sane schedule.
	return lt.AddDate(0, 0, 1)
}

func parseHM(v string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range")
	}
	return h*60 + m, nil
}
