package ingestapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/soarbridge/internal/triage"
)

// maxBodyBytes bounds an incident payload.
const maxBodyBytes = 1 << 20

// incidentResponse is the caller-visible result. Ticket is null when no
// case was recorded.
type incidentResponse struct {
	Status triage.Status `json:"status"`
	Ticket *string       `json:"ticket"`
	Code   string        `json:"code,omitempty"`
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var inc triage.Incident
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&inc); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	inc.Normalize()
	if err := validate(&inc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("soar.actor.ip", inc.IPAddress),
		attribute.String("soar.host", inc.Hostname),
	)

	out := a.svc.Process(r.Context(), &inc)

	span.SetAttributes(attribute.String("soar.status", string(out.Status)))

	resp := incidentResponse{Status: out.Status}
	if out.CaseID != "" {
		resp.Ticket = &out.CaseID
	}
	status := http.StatusOK
	if out.Status == triage.StatusError {
		status = http.StatusBadGateway
		resp.Code = out.ErrorCode
	}
	writeJSON(w, status, resp)
}

func validate(inc *triage.Incident) error {
	if inc.Hostname == "" {
		return errors.New("hostname is required")
	}
	addr, err := netip.ParseAddr(inc.IPAddress)
	if err != nil || !addr.Is4() {
		return errors.New("ip_address must be a dotted IPv4 address")
	}
	// Reject leading zeros and other non-canonical spellings so dedup keys
	// stay unique per actor.
	if addr.String() != inc.IPAddress {
		return errors.New("ip_address must be in canonical form")
	}
	return nil
}
