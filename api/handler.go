package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/board"
	"github.com/Roygautam8852/SyncSpace/config"
	"github.com/Roygautam8852/SyncSpace/db"
	"github.com/Roygautam8852/SyncSpace/internal/logx"
)

type BoardOut struct {
	RoomID       string           `json:"roomId"`
	RoomName     string           `json:"roomName"`
	ActivePageID string           `json:"activePageId"`
	Pages        []config.PageRef `json:"pages"`
	Strokes      []config.Stroke  `json:"strokes"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// GetBoard returns a read-only snapshot of a room's active page. It reads
// the store directly and never writes, so a room still on the legacy
// single canvas is shown as one page without being migrated.
func GetBoard(store db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		roomID := r.URL.Query().Get("roomId")
		if roomID == "" {
			http.Error(w, "roomId required", http.StatusBadRequest)
			return
		}

		room, err := store.Load(r.Context(), roomID)
		if errors.Is(err, db.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logx.From(r.Context()).Warn("load board", zap.Error(err))
			http.Error(w, "fail to load board", http.StatusInternalServerError)
			return
		}

		board.EnsurePages(room, time.Now())

		out := BoardOut{
			RoomID:    room.RoomID,
			RoomName:  room.RoomName,
			Pages:     board.Refs(room),
			Strokes:   []config.Stroke{},
			UpdatedAt: room.UpdatedAt,
		}
		if p := board.ActivePage(room); p != nil {
			out.ActivePageID = p.PageID
			if p.Strokes != nil {
				out.Strokes = p.Strokes
			}
		}

		writeJSON(w, r, http.StatusOK, out)
	}
}

// URLSigner signs download links for archived page exports.
type URLSigner interface {
	DownloadURL(ctx context.Context, key string) (string, error)
}

func GetArchive(signer URLSigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		objectKey := r.URL.Query().Get("key")
		if objectKey == "" {
			http.Error(w, "key required", http.StatusBadRequest)
			return
		}

		url, err := signer.DownloadURL(r.Context(), objectKey)
		if err != nil {
			logx.From(r.Context()).Debug("sign archive url", zap.Error(err))
			http.Error(w, "failed to sign URL", http.StatusBadRequest)
			return
		}

		writeJSON(w, r, http.StatusOK, map[string]string{
			"download_url": url,
		})
	}
}

func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
