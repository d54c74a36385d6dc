package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/Thethetrader/thethetrader-sub001/internal/config"
)

// TokenHandler issues access tokens for the third-party streaming platform
// the chat widget talks to directly.
type TokenHandler struct {
	cfg *config.Config
	log zerolog.Logger
}

func NewTokenHandler(cfg *config.Config, log zerolog.Logger) *TokenHandler {
	return &TokenHandler{
		cfg: cfg,
		log: log,
	}
}

// HandleGetToken returns a signed token for the user named in the query.
func (h *TokenHandler) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "user query parameter is required",
		})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user,
		"iat":     time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(h.cfg.StreamAPISecret))
	if err != nil {
		h.log.Error().Err(err).Str("user", user).Msg("token signing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to generate token",
		})
		return
	}

	h.log.Info().Str("user", user).Msg("token generated")
	writeJSON(w, http.StatusOK, map[string]string{"token": signed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
