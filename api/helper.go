package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/internal/logx"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.From(r.Context()).Debug("write response", zap.Error(err))
	}
}
