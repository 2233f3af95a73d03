package model

// Platform is the OS family a push token was issued for.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// PushToken is a device push token as registered with the server.
type PushToken struct {
	Token    string   `json:"token"`
	Platform Platform `json:"platform"`
	DeviceID string   `json:"deviceId,omitempty"`
	Active   bool     `json:"active"`
}

// SessionUser is the signed-in user as persisted next to the session token.
type SessionUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// Session binds an API token to the user it was issued for.
type Session struct {
	Token string
	User  SessionUser
}

// ProfileCompletion is the server's view of how complete the user's
// profile is.
type ProfileCompletion struct {
	Percentage      int      `json:"percentage"`
	CompletedFields []string `json:"completedFields"`
	MissingFields   []string `json:"missingFields"`
	IsComplete      bool     `json:"isComplete"`
}
