package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/checkin/internal/domain"
	"github.com/abhisek/checkin/internal/session"
	"github.com/abhisek/checkin/internal/ui/theme"
)

const timeLayout = "2006-01-02 15:04:05"

func printSession(w io.Writer, s *domain.Session) {
	lipgloss.Fprintln(w, theme.Field("Session", s.ID))
	lipgloss.Fprintln(w, theme.Field("Status", theme.Status(s.Status)))
	lipgloss.Fprintln(w, theme.Field("Stage", string(s.Stage)))
	lipgloss.Fprintln(w, theme.Field("Strikes", theme.Strikes(session.StrikeThreshold-s.IncorrectStreak, session.StrikeThreshold)))
	lipgloss.Fprintln(w, theme.Field("Started", s.StartedAt.Local().Format(timeLayout)))
	if s.LockedAt != nil {
		lipgloss.Fprintln(w, theme.Field("Locked", s.LockedAt.Local().Format(timeLayout)))
	}
	if s.CompletedAt != nil {
		lipgloss.Fprintln(w, theme.Field("Completed", s.CompletedAt.Local().Format(timeLayout)))
	}
	if s.UnlockedBy != "" {
		lipgloss.Fprintln(w, theme.Field("Unlocked by", string(s.UnlockedBy)))
	}
}

func printQuestion(w io.Writer, q *domain.Question) {
	var b strings.Builder
	b.WriteString(theme.Title.Render(q.Text))
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "\n  %c) %s", 'a'+i, opt)
	}
	b.WriteString("\n")
	b.WriteString(theme.Hint.Render(fmt.Sprintf("%s · question %s", q.Topic, q.ID)))
	lipgloss.Fprintln(w, theme.Card.Render(b.String()))
}

func printLesson(w io.Writer, l *domain.Lesson) {
	var b strings.Builder
	b.WriteString(theme.Title.Render(l.Title))
	if l.Description != "" {
		b.WriteString("\n" + l.Description)
	}
	for _, o := range l.Objectives {
		b.WriteString("\n  • " + o)
	}
	for i, a := range l.Activities {
		fmt.Fprintf(&b, "\n%d. [%s] %s", i+1, a.Type, a.Content)
		if a.Analogy != "" {
			b.WriteString("\n   " + theme.Hint.Render(a.Analogy))
		}
	}
	b.WriteString("\n" + theme.Hint.Render(fmt.Sprintf("%s · %s · watched %d×",
		time.Duration(l.DurationSeconds)*time.Second, l.Source, l.WatchCount)))
	lipgloss.Fprintln(w, theme.Card.Render(b.String()))
}

func printOutcome(w io.Writer, r session.Result) {
	switch r {
	case session.ResultCorrect:
		lipgloss.Fprintln(w, theme.Correct.Render("Correct!"))
	case session.ResultIncorrect:
		lipgloss.Fprintln(w, theme.Incorrect.Render("Not quite."))
	case session.ResultLocked:
		lipgloss.Fprintln(w, theme.Incorrect.Render("Device locked. Watch the lesson, then answer again."))
	}
}
