package config

import "encoding/json"

// ServerMsg is an outbound frame. Data is encoded once per fan-out.
type ServerMsg struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inbound: room / presence
const (
	EvJoinRoom    = "join-room"
	EvLeaveRoom   = "leave-room"
	EvChatMessage = "chat-message"
	EvTypingStart = "typing-start"
	EvTypingStop  = "typing-stop"
	EvCursorMove  = "cursor-move"
)

// inbound: canvas
const (
	EvDrawing          = "drawing"
	EvErase            = "erase"
	EvNewStroke        = "new-stroke"
	EvUpdateStroke     = "update-stroke"
	EvEraseStroke      = "erase-stroke"
	EvUpdateBoardState = "update-board-state"
	EvClearBoard       = "clear-board"
	EvSaveBoard        = "save-board"
	EvSaveCanvas       = "save-canvas"
	EvNewPage          = "new-page"
	EvSwitchPage       = "switch-page"
	EvDeletePage       = "delete-page"
	EvFileShared       = "file-shared"
	EvUndo             = "undo"
	EvRedo             = "redo"
	EvScreenShareStart = "screen-share-started"
	EvScreenShareStop  = "screen-share-stopped"
)

// inbound: mesh call
const (
	EvMeshJoin       = "mesh:join"
	EvMeshLeave      = "mesh:leave"
	EvMeshOffer      = "mesh:offer"
	EvMeshAnswer     = "mesh:answer"
	EvMeshCandidate  = "mesh:candidate"
	EvMeshMediaState = "mesh:media-state"
)

// inbound: legacy 1:1 call
const (
	EvCallStart     = "call:start"
	EvCallAccept    = "call:accept"
	EvCallReject    = "call:reject"
	EvCallCancel    = "call:cancel"
	EvCallOffer     = "call:offer"
	EvCallAnswer    = "call:answer"
	EvCallCandidate = "call:candidate"
	EvCallEnd       = "call:end"
)

// outbound only
const (
	EvConnected         = "connected"
	EvUserJoined        = "user-joined"
	EvUserLeft          = "user-left"
	EvOnlineUsers       = "online-users"
	EvCanvasState       = "canvas-state"
	EvChatHistory       = "chat-history"
	EvBoardStateUpdated = "board-state-updated"
	EvBoardCleared      = "board-cleared"
	EvBoardSaved        = "board-saved"
	EvPageAdded         = "page-added"
	EvPageSwitched      = "page-switched"
	EvPageDeleted       = "page-deleted"
	EvErrorMessage      = "error-message"
	EvNewFile           = "new-file"
	EvCallActive        = "call:active"
	EvMeshExistingPeers = "mesh:existing-peers"
	EvMeshNewPeer       = "mesh:new-peer"
	EvMeshPeerLeft      = "mesh:peer-left"
	EvMeshCallEnded     = "mesh:call-ended"
	EvCallRinging       = "call:ringing"
	EvCallAccepted      = "call:accepted"
	EvCallRejected      = "call:rejected"
	EvCallCancelled     = "call:cancelled"
	EvCallEnded         = "call:ended"
)

// Call end reasons.
const (
	ReasonCreatorLeft         = "creator-left"
	ReasonCreatorDisconnected = "creator-disconnected"
)

/* --------------------------------------------------
   inbound payloads
   -------------------------------------------------- */

type RoomMsg struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

type ChatIn struct {
	RoomID   string `json:"roomId"`
	Message  string `json:"message"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type CursorIn struct {
	RoomID     string                     `json:"roomId"`
	CursorData map[string]json.RawMessage `json:"cursorData"`
}

type StrokeIn struct {
	RoomID string  `json:"roomId"`
	Stroke *Stroke `json:"stroke"`
	PageID string  `json:"pageId,omitempty"`
}

type EraseStrokeIn struct {
	RoomID   string   `json:"roomId"`
	StrokeID StrokeID `json:"strokeId"`
	PageID   string   `json:"pageId,omitempty"`
}

type BoardStateIn struct {
	RoomID  string   `json:"roomId"`
	Strokes []Stroke `json:"strokes"`
	PageID  string   `json:"pageId,omitempty"`
}

type PageIn struct {
	RoomID string `json:"roomId"`
	PageID string `json:"pageId,omitempty"`
	UserID string `json:"userId,omitempty"`
}

// RelayIn covers broadcast-only events whose body the server never reads.
type RelayIn struct {
	RoomID      string          `json:"roomId"`
	DrawingData json.RawMessage `json:"drawingData,omitempty"`
	EraseData   json.RawMessage `json:"eraseData,omitempty"`
	File        json.RawMessage `json:"file,omitempty"`
	CanvasState json.RawMessage `json:"canvasState,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	UserName    string          `json:"userName,omitempty"`
	To          string          `json:"to,omitempty"`
}

type MeshJoinIn struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

type SignalIn struct {
	RoomID    string          `json:"roomId"`
	To        string          `json:"to"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type MediaStateIn struct {
	RoomID string `json:"roomId"`
	Mic    bool   `json:"mic"`
	Cam    bool   `json:"cam"`
}

/* --------------------------------------------------
   outbound payloads
   -------------------------------------------------- */

type ConnectedOut struct {
	SocketID string `json:"socketId"`
}

type UserOut struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	SocketID string `json:"socketId"`
	Color    string `json:"color,omitempty"`
}

type TypingOut struct {
	UserName string `json:"userName,omitempty"`
	SocketID string `json:"socketId"`
}

type CanvasStateOut struct {
	Strokes []Stroke  `json:"strokes"`
	Image   string    `json:"image"`
	PageID  string    `json:"pageId"`
	Pages   []PageRef `json:"pages"`
}

type EraseStrokeOut struct {
	StrokeID StrokeID `json:"strokeId"`
}

// PageOut carries a bare page id (board-saved, board-cleared).
type PageOut struct {
	PageID string `json:"pageId"`
}

type PageAddedOut struct {
	PageID   string    `json:"pageId"`
	PageName string    `json:"pageName"`
	Pages    []PageRef `json:"pages"`
}

type PageSwitchedOut struct {
	PageID  string   `json:"pageId"`
	Strokes []Stroke `json:"strokes"`
}

type PageDeletedOut struct {
	PageID       string    `json:"pageId"`
	ActivePageID string    `json:"activePageId"`
	Strokes      []Stroke  `json:"strokes"`
	Pages        []PageRef `json:"pages"`
}

type Participant struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

type CallActiveOut struct {
	Active       bool          `json:"active"`
	Participants []Participant `json:"participants"`
}

type ExistingPeersOut struct {
	Peers []Participant `json:"peers"`
}

type PeerLeftOut struct {
	SocketID string `json:"socketId"`
}

type CallEndedOut struct {
	Reason string `json:"reason"`
}

type SignalOut struct {
	From      string          `json:"from"`
	Username  string          `json:"username,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type MediaStateOut struct {
	From string `json:"from"`
	Mic  bool   `json:"mic"`
	Cam  bool   `json:"cam"`
}

type ScreenShareOut struct {
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

type CallRingOut struct {
	From     string `json:"from"`
	UserName string `json:"userName,omitempty"`
}
