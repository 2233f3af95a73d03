package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-sync/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the application title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps the detail, help and settings panels.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// ReadStyle dims notifications that have been read.
var ReadStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// BadgeStyle renders the unread counter.
var BadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// ReminderStyle renders the profile-completion banner.
var ReminderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorYellow)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ConnectionStyle returns a color-coded style for a realtime state name.
func ConnectionStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch state {
	case "connected":
		return base.Foreground(ColorGreen)
	case "connecting", "authenticating":
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorRed)
	}
}

// TypeStyle returns a color-coded style for the notification category.
func TypeStyle(t model.NotificationType) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch t {
	case model.NotificationFollow, model.NotificationMention:
		return base.Foreground(ColorBlue)
	case model.NotificationLike, model.NotificationComment, model.NotificationCommentReply:
		return base.Foreground(ColorMagenta)
	case model.NotificationGiftReceived, model.NotificationWalletCredit, model.NotificationWalletDebit:
		return base.Foreground(ColorGreen)
	case model.NotificationChallengeInvite, model.NotificationChallengeAccepted,
		model.NotificationChallengeCompleted, model.NotificationChallengeWon:
		return base.Foreground(ColorOrange)
	case model.NotificationRewardEarned, model.NotificationBadgeEarned, model.NotificationLevelUp:
		return base.Foreground(ColorYellow)
	case model.NotificationLiveStarting:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// TypeIcon returns a one-glyph marker for the notification category.
func TypeIcon(t model.NotificationType) string {
	switch t {
	case model.NotificationFollow:
		return "+"
	case model.NotificationLike:
		return "♥"
	case model.NotificationComment, model.NotificationCommentReply, model.NotificationMention:
		return "@"
	case model.NotificationGiftReceived, model.NotificationWalletCredit, model.NotificationWalletDebit:
		return "$"
	case model.NotificationLiveStarting, model.NotificationNewVideo:
		return "▶"
	case model.NotificationSystemAnnouncement, model.NotificationProfileIncomplete:
		return "!"
	default:
		return "•"
	}
}
