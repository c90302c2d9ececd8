package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/wnt/solforge/internal/chain"
	"github.com/wnt/solforge/internal/engine"
)

// Server is the thin HTTP surface over the ledger engine: one endpoint
// per engine operation, all responses in the uniform {ok:...} envelope.
type Server struct {
	engine   *engine.Engine
	balances chain.BalanceSource // may be nil; lookups then report zero
	logger   zerolog.Logger
	router   *mux.Router
}

// NewServer wires the routes and returns the server.
func NewServer(eng *engine.Engine, balances chain.BalanceSource, log zerolog.Logger) *Server {
	s := &Server{
		engine:   eng,
		balances: balances,
		logger:   log.With().Str("component", "api").Logger(),
		router:   mux.NewRouter(),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.logRequests)

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/coins", s.handleListCoins).Methods(http.MethodGet)
	api.HandleFunc("/coins", s.handleIssueCoin).Methods(http.MethodPost)
	api.HandleFunc("/profile/{wallet}", s.handleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/balance/{wallet}", s.handleGetBalance).Methods(http.MethodGet)
	api.HandleFunc("/referral", s.handleSetReferral).Methods(http.MethodPost)
	api.HandleFunc("/trade", s.handleTrade).Methods(http.MethodPost)
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	api.HandleFunc("/activity", s.handleActivity).Methods(http.MethodGet)

	return s
}

// Router returns the handler for mounting.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// writeOK writes a success envelope merged with the payload fields.
func (s *Server) writeOK(w http.ResponseWriter, payload map[string]interface{}) {
	body := map[string]interface{}{"ok": true}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeErr maps an engine error onto the wire: rejections become a 200
// with {ok:false, error}; internal faults use transport-level status
// codes so the caller knows not to assume durability.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if !engine.IsRejection(err) {
		s.logger.Error().Err(err).Msg("Internal error")
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":    false,
		"error": err.Error(),
	})
}
