package notiflist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/model"
	"github.com/nhle/notification-sync/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification headline.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the actor and age of the notification.
func (i Item) Description() string {
	parts := []string{string(i.Notification.Type)}
	if a := i.Notification.Actor; a != nil {
		parts = append(parts, actorName(*a))
	}
	parts = append(parts, relativeTime(i.Notification.CreatedAt))
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, renderLine(it.Notification, index == m.Index(), d.clock()))
}

func (d ItemDelegate) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

func renderLine(n model.Notification, selected bool, now time.Time) string {
	marker := " "
	if !n.IsRead {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	}

	icon := theme.TypeStyle(n.Type).Render(theme.TypeIcon(n.Type))

	title := n.Title
	if n.Actor != nil && !strings.Contains(title, n.Actor.DisplayName) {
		title = actorName(*n.Actor) + ": " + title
	}

	age := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTo(n.CreatedAt, now))

	line := fmt.Sprintf("%s %s %s  %s", marker, icon, title, age)
	if n.IsRead {
		line = theme.ReadStyle.Render(line)
	}

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func actorName(a model.Actor) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return "@" + a.Username
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	return relativeTo(t, time.Now())
}

func relativeTo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
