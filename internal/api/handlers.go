package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"simfleet-svr/internal/operator"
	"simfleet-svr/internal/sim"
)

// GET /api/sims?q=&provider=&status=&sort=&order=&page=&pageSize=&refresh=
func (s *Server) listSIMs(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := sim.Query{Text: v.Get("q")}

	if p := v.Get("provider"); p != "" {
		prov, ok := sim.ParseProvider(p)
		if !ok {
			s.writeError(w, r, badRequest("unknown provider "+strconv.Quote(p)))
			return
		}
		q.Provider = prov
	}
	if st := v.Get("status"); st != "" {
		q.Status = sim.Status(strings.ToLower(st))
		if !q.Status.Valid() {
			s.writeError(w, r, badRequest("unknown status "+strconv.Quote(st)))
			return
		}
	}
	if sk := v.Get("sort"); sk != "" {
		q.Sort = sim.ParseSortKey(sk)
		if q.Sort == "" {
			s.writeError(w, r, badRequest("unknown sort key "+strconv.Quote(sk)))
			return
		}
	}
	switch strings.ToLower(v.Get("order")) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		s.writeError(w, r, badRequest("order must be asc or desc"))
		return
	}

	page, err := intParam(v.Get("page"), 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	size, err := intParam(v.Get("pageSize"), sim.DefaultPageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	refresh := false
	if rv := v.Get("refresh"); rv != "" {
		refresh, err = strconv.ParseBool(rv)
		if err != nil {
			s.writeError(w, r, badRequest("refresh must be a boolean"))
			return
		}
	}

	res, err := s.sims.Search(r.Context(), q, page, size, refresh)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("invalid number " + strconv.Quote(raw))
	}
	return n, nil
}

func (s *Server) getSIM(w http.ResponseWriter, r *http.Request) {
	got, err := s.sims.Get(r.Context(), chi.URLParam(r, "iccid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, r, badRequest("invalid body: "+err.Error()))
		return
	}
	st := sim.Status(strings.ToLower(strings.TrimSpace(body.Status)))
	got, err := s.sims.SetStatus(r.Context(), chi.URLParam(r, "iccid"), st)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

type detectResponse struct {
	ICCID      string       `json:"iccid,omitempty"`
	ICCIDValid *bool        `json:"iccid_valid,omitempty"`
	CheckDigit string       `json:"expected_check_digit,omitempty"`
	Operator   sim.Operator `json:"operator"`
}

// GET /api/operators/detect?iccid=&imsi=&msisdn=
func (s *Server) detectOperator(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	in := sim.SIM{IMSI: strings.TrimSpace(v.Get("imsi")), MSISDN: sim.NormalizeMSISDN(v.Get("msisdn"))}
	if raw := v.Get("iccid"); raw != "" {
		iccid, err := sim.NormalizeICCID(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		in.ICCID = iccid
	}
	if in.ICCID == "" && in.IMSI == "" && in.MSISDN == "" {
		s.writeError(w, r, badRequest("one of iccid, imsi or msisdn is required"))
		return
	}

	resp := detectResponse{ICCID: in.ICCID, Operator: s.sims.Detect(r.Context(), in)}
	if in.ICCID != "" {
		ok := operator.ValidICCID(in.ICCID)
		resp.ICCIDValid = &ok
		if !ok && len(in.ICCID) > 18 {
			resp.CheckDigit = string(operator.LuhnDigit(in.ICCID[:len(in.ICCID)-1]))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	devs, err := s.sims.EnrichDevices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": devs, "total": len(devs)})
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.sims.Assets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": assets, "total": len(assets)})
}

func (s *Server) lookupVehicle(w http.ResponseWriter, r *http.Request) {
	if s.vehicles == nil {
		s.writeError(w, r, sim.ErrUnsupported)
		return
	}
	veh, err := s.vehicles.Lookup(r.Context(), chi.URLParam(r, "plate"))
	if q, ok := s.vehicles.(QuotaReporter); ok {
		if left, ok := q.QuotaRemaining(r.Context()); ok {
			w.Header().Set("X-Quota-Remaining", strconv.Itoa(left))
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, veh)
}
