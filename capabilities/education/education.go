// Package education provides the study_planner capability, which spreads study
// hours over the days before a deadline.
package education

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/spachava753/toolloop"
)

const (
	dateLayout = "2006-01-02"
	maxDays    = 365
	noPriority = "None specified"
)

type StudyPlanArgs struct {
	Subjects          []string `json:"subjects" jsonschema:"subjects to study"`
	HoursAvailable    float64  `json:"hoursAvailable" jsonschema:"total hours available for studying"`
	PrioritySubject   string   `json:"prioritySubject,omitempty" jsonschema:"subject that should receive more focus, one of subjects"`
	StartDate         string   `json:"startDate,omitempty" jsonschema:"first day of the plan in YYYY-MM-DD format, defaults to today"`
	DaysUntilDeadline int      `json:"daysUntilDeadline" jsonschema:"number of days until the deadline or exam"`
}

func (a *StudyPlanArgs) Validate() error {
	if len(a.Subjects) == 0 {
		return errors.New("at least one subject is required")
	}
	for _, s := range a.Subjects {
		if strings.TrimSpace(s) == "" {
			return errors.New("subjects must not be empty")
		}
	}
	if a.HoursAvailable <= 0 {
		return errors.New("hoursAvailable must be positive")
	}
	if a.DaysUntilDeadline < 1 || a.DaysUntilDeadline > maxDays {
		return fmt.Errorf("daysUntilDeadline must be between 1 and %d", maxDays)
	}
	if a.PrioritySubject != "" && !slices.Contains(a.Subjects, a.PrioritySubject) {
		return fmt.Errorf("prioritySubject %q is not one of the subjects", a.PrioritySubject)
	}
	if a.StartDate != "" {
		if _, err := time.Parse(dateLayout, a.StartDate); err != nil {
			return fmt.Errorf("startDate must use the YYYY-MM-DD format: %w", err)
		}
	}
	return nil
}

type Session struct {
	Subject   string  `json:"subject"`
	Hours     float64 `json:"hours"`
	TimeBlock string  `json:"timeBlock"`
}

type Day struct {
	Day      int       `json:"day"`
	Date     string    `json:"date"`
	Sessions []Session `json:"sessions"`
}

type StudyPlan struct {
	Subjects           []string `json:"subjects"`
	TotalHours         float64  `json:"totalHours"`
	DaysUntilDeadline  int      `json:"daysUntilDeadline"`
	AverageHoursPerDay float64  `json:"averageHoursPerDay"`
	PrioritySubject    string   `json:"prioritySubject"`
	Schedule           []Day    `json:"schedule"`
}

// Plan builds the schedule. The priority subject weighs twice as much as the
// others, daily hours are rounded to half hours, and time left over after
// rounding goes to the priority subject.
func Plan(args StudyPlanArgs, today time.Time) (StudyPlan, error) {
	if err := args.Validate(); err != nil {
		return StudyPlan{}, err
	}
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if args.StartDate != "" {
		start, _ = time.Parse(dateLayout, args.StartDate)
	}

	perDay := args.HoursAvailable / float64(args.DaysUntilDeadline)
	weight := func(subject string) float64 {
		if subject == args.PrioritySubject {
			return 2
		}
		return 1
	}
	var total float64
	for _, s := range args.Subjects {
		total += weight(s)
	}

	plan := StudyPlan{
		Subjects:           args.Subjects,
		TotalHours:         args.HoursAvailable,
		DaysUntilDeadline:  args.DaysUntilDeadline,
		AverageHoursPerDay: perDay,
		PrioritySubject:    args.PrioritySubject,
	}
	if plan.PrioritySubject == "" {
		plan.PrioritySubject = noPriority
	}

	for day := range args.DaysUntilDeadline {
		d := Day{Day: day + 1, Date: start.AddDate(0, 0, day).Format(dateLayout), Sessions: []Session{}}
		remaining := perDay
		for _, s := range args.Subjects {
			hours := math.Round(weight(s)/total*perDay*2) / 2
			if hours <= 0 {
				continue
			}
			d.Sessions = append(d.Sessions, Session{Subject: s, Hours: hours, TimeBlock: timeBlock(hours)})
			remaining -= hours
		}
		if remaining > 0 && args.PrioritySubject != "" {
			i := slices.IndexFunc(d.Sessions, func(s Session) bool { return s.Subject == args.PrioritySubject })
			if i >= 0 {
				d.Sessions[i].Hours += remaining
				d.Sessions[i].TimeBlock = timeBlock(d.Sessions[i].Hours)
			} else {
				d.Sessions = append(d.Sessions, Session{Subject: args.PrioritySubject, Hours: remaining, TimeBlock: timeBlock(remaining)})
			}
		}
		plan.Schedule = append(plan.Schedule, d)
	}
	return plan, nil
}

func timeBlock(hours float64) string {
	switch {
	case hours <= 1:
		return "1 session of 1 hour"
	case hours <= 2:
		return "1 session of 2 hours"
	}
	n := math.Ceil(hours / 1.5)
	return fmt.Sprintf("%d sessions of %.1f hours each", int(n), hours/n)
}

// StudyPlanner returns the study_planner capability. now defaults to time.Now
// and supplies the start date when none is given.
func StudyPlanner(now func() time.Time) toolloop.Capability {
	if now == nil {
		now = time.Now
	}
	return toolloop.MustCapability("study_planner",
		"Create a day by day study schedule for a set of subjects and the hours available before a deadline",
		func(ctx context.Context, args StudyPlanArgs) (string, error) {
			plan, err := Plan(args, now())
			if err != nil {
				return "", err
			}
			b, err := json.Marshal(plan)
			if err != nil {
				return "", err
			}
			return string(b), nil
		})
}
