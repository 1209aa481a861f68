package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/a-bouts/race-engine/api/model"
	"github.com/a-bouts/race-engine/latlon"
	"github.com/a-bouts/race-engine/polar"
	"github.com/a-bouts/race-engine/prefs"
	"github.com/a-bouts/race-engine/race"
	"github.com/a-bouts/race-engine/session"
	"github.com/a-bouts/race-engine/track"
	"github.com/a-bouts/race-engine/wind"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Race is the running session as seen by the API.
type Race interface {
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
	Tack(ctx context.Context) (float64, bool, error)
	SetHeading(ctx context.Context, heading float64) error
	Abandon(ctx context.Context) error
	WindAt(ctx context.Context, p latlon.LatLon) (wind.Vector, bool, error)
}

type Config struct {
	Race     Race
	Course   *race.Course
	Polar    *polar.Table
	Prefs    prefs.Store
	Recorder *track.Recorder
}

type server struct {
	Config
	upgrader websocket.Upgrader
}

func InitServer(cfg Config) *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	s := &server{
		Config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	apiV1 := router.PathPrefix("/race/api/v1").Subrouter()
	apiV1.HandleFunc("/-/healthz", s.healthz).Methods(http.MethodGet)
	apiV1.HandleFunc("/snapshot", s.snapshot).Methods(http.MethodGet)
	apiV1.HandleFunc("/tack", s.tack).Methods(http.MethodPost)
	apiV1.HandleFunc("/heading", s.heading).Methods(http.MethodPost)
	apiV1.HandleFunc("/abandon", s.abandon).Methods(http.MethodPost)
	apiV1.HandleFunc("/course", s.course).Methods(http.MethodGet)
	apiV1.HandleFunc("/course/leg/{i:[0-9]+}", s.leg).Methods(http.MethodGet)
	apiV1.HandleFunc("/wind/{lat}/{lon}", s.wind).Methods(http.MethodGet)
	apiV1.HandleFunc("/polar", s.polarInfo).Methods(http.MethodGet)
	apiV1.HandleFunc("/polar/{tws}/{twa}", s.polar).Methods(http.MethodGet)
	apiV1.HandleFunc("/track", s.track).Methods(http.MethodGet)
	apiV1.HandleFunc("/prefs", s.getPrefs).Methods(http.MethodGet)
	apiV1.HandleFunc("/prefs", s.putPrefs).Methods(http.MethodPut)
	apiV1.HandleFunc("/stream", s.stream).Methods(http.MethodGet)

	return router
}

// WithMiddlewares adds CORS and an access log written to accessLog.
func WithMiddlewares(h http.Handler, accessLog io.Writer) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.CombinedLoggingHandler(accessLog, cors(h))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, model.Error{Error: err.Error()})
}

// status maps runner errors to HTTP codes.
func status(err error) int {
	switch {
	case errors.Is(err, session.ErrStopped):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func requestLogger(req *http.Request, action string) *log.Entry {
	fields := log.Fields{
		"action": action,
	}
	if ip, err := getIp(req); err == nil {
		fields["IP"] = ip
	}
	return log.WithFields(fields)
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Health{Status: "Ok"})
}

func (s *server) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Race.Snapshot())
}

func (s *server) tack(w http.ResponseWriter, r *http.Request) {
	target, ok, err := s.Race.Tack(r.Context())
	if err != nil {
		writeError(w, status(err), err)
		return
	}
	requestLogger(r, "tack").Infof("Tack accepted %t target %.1f", ok, target)
	writeJSON(w, http.StatusOK, model.Tack{Accepted: ok, Target: target})
}

func (s *server) heading(w http.ResponseWriter, r *http.Request) {
	var h model.Heading
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil || h.Heading == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("expected {\"heading\": degrees}"))
		return
	}
	if err := s.Race.SetHeading(r.Context(), *h.Heading); err != nil {
		writeError(w, status(err), err)
		return
	}
	requestLogger(r, "heading").Infof("Heading set to %.1f", *h.Heading)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) abandon(w http.ResponseWriter, r *http.Request) {
	if err := s.Race.Abandon(r.Context()); err != nil {
		writeError(w, status(err), err)
		return
	}
	requestLogger(r, "abandon").Info("Race abandoned")
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) course(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Course)
}

func (s *server) leg(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(mux.Vars(r)["i"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	leg := s.Course.Leg(i)
	if leg == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, leg)
}

func floatVars(r *http.Request, names ...string) ([]float64, error) {
	values := make([]float64, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(mux.Vars(r)[name], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		values[i] = v
	}
	return values, nil
}

func (s *server) wind(w http.ResponseWriter, r *http.Request) {
	v, err := floatVars(r, "lat", "lon")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sample, ok, err := s.Race.WindAt(r.Context(), latlon.LatLon{Lat: v[0], Lon: v[1]})
	if err != nil {
		writeError(w, status(err), err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	res := model.Wind{U: sample.U, V: sample.V, Direction: sample.Direction(), Speed: sample.Knots()}
	log.Debugf("Wind (%f,%f) : %.1f° %.1f kt", v[0], v[1], res.Direction, res.Speed)
	writeJSON(w, http.StatusOK, res)
}

func (s *server) polar(w http.ResponseWriter, r *http.Request) {
	v, err := floatVars(r, "tws", "twa")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Polar{Tws: v[0], Twa: v[1], Speed: s.Polar.SpeedAt(v[0], v[1])})
}

func (s *server) polarInfo(w http.ResponseWriter, r *http.Request) {
	res := model.PolarInfo{Table: s.Polar, MaxSpeed: s.Polar.MaxSpeed()}

	if q := r.URL.Query().Get("tws"); q != "" {
		tws, err := strconv.ParseFloat(q, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		twa, vmg := s.Polar.BestVMG(tws, true)
		res.Upwind = &model.VMG{Twa: twa, VMG: vmg}
		twa, vmg = s.Polar.BestVMG(tws, false)
		res.Downwind = &model.VMG{Twa: twa, VMG: vmg}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) track(w http.ResponseWriter, r *http.Request) {
	if s.Recorder == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.Recorder.Track())
}

func (s *server) getPrefs(w http.ResponseWriter, r *http.Request) {
	if s.Prefs == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	p, err := s.Prefs.Load()
	if err != nil {
		log.WithError(err).Error("Error loading preferences")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) putPrefs(w http.ResponseWriter, r *http.Request) {
	if s.Prefs == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var update prefs.Prefs
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.Prefs.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	p.PlayerName = update.PlayerName
	if err := s.Prefs.Save(p); err != nil {
		log.WithError(err).Error("Error saving preferences")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func getIp(r *http.Request) (string, error) {
	//Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip, nil
	}

	//Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	splitIps := strings.Split(ips, ",")
	for _, ip := range splitIps {
		ip = strings.TrimSpace(ip)
		netIP := net.ParseIP(ip)
		if netIP != nil {
			return ip, nil
		}
	}

	//Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "", err
	}
	netIP = net.ParseIP(ip)
	if netIP != nil {
		return ip, nil
	}
	return "", fmt.Errorf("No valid ip found")
}
