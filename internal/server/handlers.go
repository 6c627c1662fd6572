package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/maruel/ksid"
	"github.com/nutrilog/nutrilog/internal/diary"
)

type handler struct {
	svc *Services
}

// entryRequest is the caller-facing entry payload. Versioning fields are
// engine-owned and never accepted from the caller.
type entryRequest struct {
	UserID     string    `json:"user_id"`
	Food       string    `json:"food"`
	ConsumedAt time.Time `json:"consumed_at"`
	Notes      string    `json:"notes"`
}

func (er *entryRequest) toEntry() diary.Entry {
	return diary.Entry{UserID: er.UserID, Food: er.Food, ConsumedAt: er.ConsumedAt, Notes: er.Notes}
}

type foodRequest struct {
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	Calories    float64 `json:"calories"`
	ServingSize string  `json:"serving_size"`
}

func (fr *foodRequest) toFood() diary.Food {
	return diary.Food{Name: fr.Name, Brand: fr.Brand, Calories: fr.Calories, ServingSize: fr.ServingSize}
}

type createResponse struct {
	InstanceID ksid.ID `json:"instance_id"`
}

type updateResponse struct {
	ID ksid.ID `json:"id"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) debug(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "The debug function endpoint executed successfully")
}

func (h *handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", diary.ErrInvalid, err))
		return
	}
	iid, err := h.svc.Entries.Create(r.Context(), req.toEntry())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{InstanceID: iid})
}

func (h *handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	iid, err := ksid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", diary.ErrInvalid, err))
		return
	}
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", diary.ErrInvalid, err))
		return
	}
	id, err := h.svc.Entries.Update(r.Context(), iid, req.toEntry())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{ID: id})
}

func (h *handler) listEntries(w http.ResponseWriter, r *http.Request) {
	var entries []diary.Entry
	var err error
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		entries, err = h.svc.Entries.CurrentForUser(r.Context(), userID)
	} else {
		entries, err = h.svc.Entries.Current(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []diary.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) entryHistory(w http.ResponseWriter, r *http.Request) {
	iid, err := ksid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", diary.ErrInvalid, err))
		return
	}
	history, err := h.svc.Entries.History(r.Context(), iid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []diary.Entry{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *handler) entrySchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Entries.Schema())
}

func (h *handler) createFood(w http.ResponseWriter, r *http.Request) {
	var req foodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", diary.ErrInvalid, err))
		return
	}
	iid, err := h.svc.Foods.Create(r.Context(), req.toFood())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{InstanceID: iid})
}

func (h *handler) updateFood(w http.ResponseWriter, r *http.Request) {
	iid, err := ksid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", diary.ErrInvalid, err))
		return
	}
	var req foodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", diary.ErrInvalid, err))
		return
	}
	id, err := h.svc.Foods.Update(r.Context(), iid, req.toFood())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{ID: id})
}

func (h *handler) listFoods(w http.ResponseWriter, r *http.Request) {
	foods, err := h.svc.Foods.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if foods == nil {
		foods = []diary.Food{}
	}
	writeJSON(w, http.StatusOK, foods)
}

func (h *handler) foodHistory(w http.ResponseWriter, r *http.Request) {
	iid, err := ksid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", diary.ErrInvalid, err))
		return
	}
	history, err := h.svc.Foods.History(r.Context(), iid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []diary.Food{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *handler) foodSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Foods.Schema())
}
