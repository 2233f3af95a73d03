package model

import "time"

// NotificationType identifies the kind of activity a notification reports.
type NotificationType string

const (
	NotificationFollow             NotificationType = "FOLLOW"
	NotificationLike               NotificationType = "LIKE"
	NotificationComment            NotificationType = "COMMENT"
	NotificationCommentReply       NotificationType = "COMMENT_REPLY"
	NotificationMention            NotificationType = "MENTION"
	NotificationGiftReceived       NotificationType = "GIFT_RECEIVED"
	NotificationChallengeInvite    NotificationType = "CHALLENGE_INVITE"
	NotificationChallengeAccepted  NotificationType = "CHALLENGE_ACCEPTED"
	NotificationChallengeCompleted NotificationType = "CHALLENGE_COMPLETED"
	NotificationChallengeWon       NotificationType = "CHALLENGE_WON"
	NotificationLiveStarting       NotificationType = "LIVE_STARTING"
	NotificationClubNewPost        NotificationType = "CLUB_NEW_POST"
	NotificationNewVideo           NotificationType = "NEW_VIDEO"
	NotificationWalletCredit       NotificationType = "WALLET_CREDIT"
	NotificationWalletDebit        NotificationType = "WALLET_DEBIT"
	NotificationRewardEarned       NotificationType = "REWARD_EARNED"
	NotificationBadgeEarned        NotificationType = "BADGE_EARNED"
	NotificationLevelUp            NotificationType = "LEVEL_UP"
	NotificationProfileIncomplete  NotificationType = "PROFILE_INCOMPLETE"
	NotificationSystemAnnouncement NotificationType = "SYSTEM_ANNOUNCEMENT"
)

var notificationTypes = map[NotificationType]bool{
	NotificationFollow:             true,
	NotificationLike:               true,
	NotificationComment:            true,
	NotificationCommentReply:       true,
	NotificationMention:            true,
	NotificationGiftReceived:       true,
	NotificationChallengeInvite:    true,
	NotificationChallengeAccepted:  true,
	NotificationChallengeCompleted: true,
	NotificationChallengeWon:       true,
	NotificationLiveStarting:       true,
	NotificationClubNewPost:        true,
	NotificationNewVideo:           true,
	NotificationWalletCredit:       true,
	NotificationWalletDebit:        true,
	NotificationRewardEarned:       true,
	NotificationBadgeEarned:        true,
	NotificationLevelUp:            true,
	NotificationProfileIncomplete:  true,
	NotificationSystemAnnouncement: true,
}

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	return notificationTypes[t]
}

// Actor is the user whose action produced a notification.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
	Username    string `json:"username"`
}

// Notification represents a single activity entry in the user's inbox.
type Notification struct {
	// ID is the server-assigned identifier, unique within an inbox.
	ID string `json:"id"`

	// Type classifies the notification for icons and routing.
	Type NotificationType `json:"type"`

	// Title is the short headline shown in the list.
	Title string `json:"title"`

	// Body is the longer human-readable text.
	Body string `json:"body"`

	// Data holds opaque routing hints (video id, club id, ...).
	Data map[string]any `json:"data,omitempty"`

	// ImageURL is an optional thumbnail.
	ImageURL *string `json:"imageUrl,omitempty"`

	// IsRead indicates whether the user has seen this notification.
	IsRead bool `json:"isRead"`

	// CreatedAt is when the server generated this notification.
	CreatedAt time.Time `json:"createdAt"`

	// Actor is the user who triggered it, absent for system notifications.
	Actor *Actor `json:"actor,omitempty"`
}

// NotificationSettings holds the user's per-category delivery preferences.
type NotificationSettings struct {
	PushEnabled   bool `json:"pushEnabled"`
	InAppEnabled  bool `json:"inAppEnabled"`
	Follows       bool `json:"follows"`
	Likes         bool `json:"likes"`
	Comments      bool `json:"comments"`
	Mentions      bool `json:"mentions"`
	Gifts         bool `json:"gifts"`
	Challenges    bool `json:"challenges"`
	LiveStreams   bool `json:"liveStreams"`
	Clubs         bool `json:"clubs"`
	Wallet        bool `json:"wallet"`
	Rewards       bool `json:"rewards"`
	Announcements bool `json:"announcements"`
}
