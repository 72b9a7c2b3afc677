package main

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pion/logging"
	"github.com/pion/mediasession"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed index.html
var indexPage []byte

// maxOfferSize bounds the request body of /make_session.
const maxOfferSize = 1 << 16

type offerRequest struct {
	Offer string `json:"offer"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

// acceptFunc answers an offer and starts streaming to the offerer.
type acceptFunc func(offer string) (string, *mediasession.Session, error)

type server struct {
	accept acceptFunc
	log    logging.LeveledLogger
}

func newHandler(accept acceptFunc, gatherer prometheus.Gatherer, log logging.LeveledLogger) http.Handler {
	s := &server{accept: accept, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.servePage)
	mux.HandleFunc("POST /make_session", s.makeSession)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (s *server) servePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (s *server) makeSession(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOfferSize)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	answer, session, err := s.accept(req.Offer)
	if err != nil {
		s.log.Warnf("make_session from %s: %v", r.RemoteAddr, err)
		status := http.StatusInternalServerError
		if errors.Is(err, mediasession.ErrNegotiation) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	if session != nil {
		s.log.Infof("session %s started for %s", session.ID(), r.RemoteAddr)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(answerResponse{Answer: answer}); err != nil {
		s.log.Warnf("make_session: failed to write answer: %v", err)
	}
}
