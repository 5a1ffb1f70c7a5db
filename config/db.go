package config

import "time"

// Room is the persisted room document. The session core only reads
// Pages, ActivePageID, ChatHistory and Host, and only writes the first three.
type Room struct {
	RoomID          string            `json:"roomId"`
	RoomName        string            `json:"roomName"`
	Host            string            `json:"host"`
	Participants    []RoomParticipant `json:"participants,omitempty"`
	Pages           []Page            `json:"pages"`
	ActivePageID    string            `json:"activePageId"`
	ChatHistory     []ChatMessage     `json:"chatHistory"`
	IsActive        bool              `json:"isActive"`
	MaxParticipants int               `json:"maxParticipants"`

	// pre-pages single canvas, read once when the first page is synthesized
	LegacyStrokes    []Stroke `json:"strokes,omitempty"`
	LegacyCanvasData string   `json:"canvasData,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

type RoomParticipant struct {
	User     string    `json:"user"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Page struct {
	PageID     string    `json:"pageId"`
	PageName   string    `json:"pageName"`
	Strokes    []Stroke  `json:"strokes"`
	CanvasData string    `json:"canvasData"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ChatMessage struct {
	Sender     string    `json:"sender"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}
