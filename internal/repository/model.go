package repository

import "time"

type SessionState string

const (
	SessionStateNew      SessionState = "new"
	SessionStateRunning  SessionState = "running"
	SessionStateStopping SessionState = "stopping"
	SessionStateEnded    SessionState = "ended"
)

// Live reports whether resource handles are present for the state.
func (s SessionState) Live() bool {
	return s == SessionStateRunning || s == SessionStateStopping
}

type LeaveReason string

const (
	LeaveReasonLeft   LeaveReason = "left"
	LeaveReasonKicked LeaveReason = "kicked"
	LeaveReasonBanned LeaveReason = "banned"
	LeaveReasonEnded  LeaveReason = "ended"
)

// Punitive reports whether the reason forfeits playtime and costs reputation.
func (r LeaveReason) Punitive() bool {
	return r == LeaveReasonKicked || r == LeaveReasonBanned
}

type VoiceChannelSpec struct {
	Name      string `json:"name"`
	UserLimit int    `json:"userLimit"`
}

type Blueprint struct {
	Name          string             `json:"name"`
	Type          string             `json:"type"`
	Edition       string             `json:"edition"`
	ServerInfo    string             `json:"serverInfo"`
	Preferences   map[string]string  `json:"preferences,omitempty"`
	MaxPlayers    int                `json:"maxPlayers"`
	VoiceChannels []VoiceChannelSpec `json:"voiceChannels,omitempty"`
}

type Player struct {
	ID          string      `json:"id"`
	JoinTime    time.Time   `json:"joinTime"`
	LeaveTime   *time.Time  `json:"leaveTime,omitempty"`
	LeaveReason LeaveReason `json:"leaveReason,omitempty"`
}

// Joined reports whether the entry is still open.
func (p Player) Joined() bool {
	return p.LeaveTime == nil
}

type PlayTypeChange struct {
	Type string    `json:"type"`
	From time.Time `json:"from"`
}

type ChannelHandles struct {
	CategoryID      string   `json:"categoryId"`
	TextChannelID   string   `json:"textChannelId"`
	VoiceChannelIDs []string `json:"voiceChannelIds,omitempty"`
}

type RoleHandles struct {
	SessionRoleID string `json:"sessionRoleId"`
}

type MessageHandles struct {
	ControlMessageID string `json:"controlMessageId"`
	// Announcements is cleared once the session is stopping.
	Announcements []MessageRef `json:"announcements,omitempty"`
}

type MessageRef struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

type Resources struct {
	Channels ChannelHandles `json:"channels"`
	Roles    RoleHandles    `json:"roles"`
	Messages MessageHandles `json:"messages"`
}

type SessionRecord struct {
	ID              string           `json:"id"`
	UniqueID        string           `json:"uniqueId"`
	State           SessionState     `json:"state"`
	Blueprint       Blueprint        `json:"blueprint"`
	HostID          string           `json:"hostId"`
	ExperienceID    string           `json:"experienceId,omitempty"`
	Players         []Player         `json:"players"`
	PlayTypeHistory []PlayTypeChange `json:"playTypeHistory"`
	StartTime       time.Time        `json:"startTime"`
	EndTime         *time.Time       `json:"endTime,omitempty"`
	Resources       *Resources       `json:"resources,omitempty"`
}

type UserReputation struct {
	UserID                        string
	RecommendationScore           float64
	TotalRecommendationScore      float64
	LastRecommendationScoreUpdate time.Time
	LastPingAt                    *time.Time
}
