package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/empathai/internal/moods"
)

type moodRequest struct {
	Date      string  `json:"date"`
	Mood      string  `json:"mood"`
	Note      string  `json:"note"`
	Sentiment float64 `json:"sentiment"`
}

func (s *Server) handleListMoods(w http.ResponseWriter, r *http.Request) {
	entries, err := s.moods.List(r.Context(), userIDFrom(r))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []moods.Entry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"moods": entries})
}

func (s *Server) handleGetMood(w http.ResponseWriter, r *http.Request) {
	entry, err := s.moods.ByDate(r.Context(), userIDFrom(r), chi.URLParam(r, "date"))
	if errors.Is(err, moods.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "no mood journaled for this date")
		return
	}
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"mood": entry})
}

func (s *Server) handleUpsertMood(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	entry := moods.Entry{
		UserID:    userIDFrom(r),
		Date:      req.Date,
		Mood:      req.Mood,
		Note:      req.Note,
		Sentiment: req.Sentiment,
	}
	if err := entry.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_mood", err.Error())
		return
	}

	entry, err := s.moods.Upsert(r.Context(), entry)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"mood": entry})
}

func (s *Server) handleDeleteMood(w http.ResponseWriter, r *http.Request) {
	err := s.moods.Delete(r.Context(), userIDFrom(r), chi.URLParam(r, "date"))
	if errors.Is(err, moods.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "no mood journaled for this date")
		return
	}
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
