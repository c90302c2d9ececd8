package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wnt/solforge/internal/engine"
	"github.com/wnt/solforge/internal/models"
	"github.com/wnt/solforge/internal/utils"
)

var errBadRequestBody = errors.New("invalid request body")

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequestBody
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	coins, err := s.engine.ListCoins(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, map[string]interface{}{
		"coins": len(coins),
	})
}

func (s *Server) handleListCoins(w http.ResponseWriter, r *http.Request) {
	coins, err := s.engine.ListCoins(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, map[string]interface{}{"coins": coins})
}

func (s *Server) handleIssueCoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name                string      `json:"name"`
		Symbol              string      `json:"symbol"`
		Story               string      `json:"story"`
		Logo                string      `json:"logo"`
		InitialContribution interface{} `json:"initialContribution"`
		CreatorWallet       string      `json:"creatorWallet"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeRejection(w, err)
		return
	}

	coin, err := s.engine.IssueCoin(r.Context(), engine.IssueParams{
		Name:                req.Name,
		Symbol:              req.Symbol,
		Story:               req.Story,
		Logo:                req.Logo,
		InitialContribution: utils.ToFloat(req.InitialContribution, 0),
		CreatorWallet:       req.CreatorWallet,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, map[string]interface{}{"coin": coin})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]
	profile, err := s.engine.GetProfile(r.Context(), wallet)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, map[string]interface{}{"profile": profile})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]

	// A transient chain failure never blocks the caller; it reads as a
	// zero balance.
	var sol float64
	if s.balances != nil {
		if got, err := s.balances.Balance(r.Context(), wallet); err == nil {
			sol = got
		} else {
			s.logger.Warn().Err(err).Str("wallet", wallet).Msg("Balance lookup failed, returning zero")
		}
	}
	s.writeOK(w, map[string]interface{}{"sol": sol})
}

func (s *Server) handleSetReferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet   string `json:"wallet"`
		Referrer string `json:"referrer"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeRejection(w, err)
		return
	}

	if err := s.engine.SetReferral(r.Context(), req.Wallet, req.Referrer); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, nil)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet string      `json:"wallet"`
		CoinID string      `json:"coinId"`
		Side   string      `json:"side"`
		Sol    interface{} `json:"sol"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeRejection(w, err)
		return
	}

	coin, profile, err := s.engine.ExecuteTrade(r.Context(), engine.TradeParams{
		Wallet:    req.Wallet,
		CoinID:    req.CoinID,
		Side:      models.TradeSide(req.Side),
		SolAmount: utils.ToFloat(req.Sol, 0),
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, map[string]interface{}{"coin": coin, "profile": profile})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Wallet      string `json:"wallet"`
		Kind        string `json:"kind"`
		Destination string `json:"destination"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeRejection(w, err)
		return
	}

	sol, err := s.engine.Withdraw(r.Context(), req.Wallet, engine.WithdrawKind(req.Kind), req.Destination)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, map[string]interface{}{"sol": sol})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := int(utils.ToInt64(r.URL.Query().Get("limit"), 100))
	entries, err := s.engine.Activity(r.Context(), limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeOK(w, map[string]interface{}{"activity": entries})
}

// writeRejection writes a malformed-body rejection in the same envelope
// as engine validation failures.
func (s *Server) writeRejection(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":    false,
		"error": err.Error(),
	})
}
