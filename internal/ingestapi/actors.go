package ingestapi

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

type actorResponse struct {
	IP       string         `json:"ip"`
	CaseID   string         `json:"case_id"`
	HitCount int            `json:"hit_count"`
	LastSeen time.Time      `json:"last_seen"`
	Verdict  triage.Verdict `json:"verdict,omitempty"`
}

func (a *API) handleGetActor(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if addr, err := netip.ParseAddr(ip); err != nil || !addr.Is4() {
		writeError(w, http.StatusBadRequest, "invalid ip")
		return
	}

	rec, ok, err := a.svc.Actor(r.Context(), ip)
	if err != nil {
		a.logger.Error(r.Context(), err, "actor lookup failed", "ip", ip)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "actor not found")
		return
	}

	writeJSON(w, http.StatusOK, actorResponse{
		IP:       rec.IP,
		CaseID:   rec.CaseID,
		HitCount: rec.HitCount,
		LastSeen: rec.LastSeen,
		Verdict:  rec.Verdict,
	})
}
