// Package httpapi exposes the engine's operation surface over
// net/http.ServeMux, grounded on the teacher's pkg/httpserver/server.go:
// the same rate-limiter wrap, JSON content-type header, health check and
// openapi handler, extended with write endpoints for claim, terminate,
// deposit and incentive intake.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumera-labs/lockup-vesting/internal/acl"
	"github.com/lumera-labs/lockup-vesting/internal/custody"
	"github.com/lumera-labs/lockup-vesting/internal/engine"
	"github.com/lumera-labs/lockup-vesting/internal/lockup"
	"github.com/lumera-labs/lockup-vesting/internal/money"
	"github.com/lumera-labs/lockup-vesting/internal/schedule"
	"github.com/lumera-labs/lockup-vesting/pkg/ratelimit"
	"github.com/lumera-labs/lockup-vesting/schema"
)

// Clock abstracts wall-clock time so handlers are deterministic in tests,
// mirroring the engine's Timestamp-as-parameter style rather than calling
// time.Now() deep inside business logic.
type Clock func() money.Timestamp

// RealClock reads the actual wall clock.
func RealClock() money.Timestamp { return money.FromUnixNano(uint64(time.Now().UnixNano())) }

// Config configures the HTTP transport.
type Config struct {
	Contract   *engine.Contract
	Clock      Clock
	RatePerMin int
	Burst      int
	GitTag     string
	GitCommit  string
	Log        *zap.Logger
}

// Server is the engine's HTTP transport.
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	limiter *ratelimit.Limiter
	log     *zap.Logger
}

// New builds a Server with every operation-surface endpoint wired.
func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = RealClock
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	lim := ratelimit.New(cfg.RatePerMin, cfg.Burst)
	s := &Server{cfg: cfg, mux: http.NewServeMux(), limiter: lim, log: log}

	s.mux.HandleFunc("/healthz", s.healthz)
	s.mux.HandleFunc("/version", s.wrap(s.handleVersion))
	s.mux.HandleFunc("/openapi.yaml", s.handleOpenAPI)

	s.mux.HandleFunc("/lockups/", s.wrap(s.handleLockupByIndex))
	s.mux.HandleFunc("/accounts/", s.wrap(s.handleAccountLockups))
	s.mux.HandleFunc("/num_lockups", s.wrap(s.handleNumLockups))
	s.mux.HandleFunc("/deposit_whitelist", s.wrap(s.handleDepositWhitelist))
	s.mux.HandleFunc("/hash_schedule", s.wrap(s.handleHashSchedule))
	s.mux.HandleFunc("/validate_schedule", s.wrap(s.handleValidateSchedule))

	s.mux.HandleFunc("/claim", s.wrap(s.handleClaim))
	s.mux.HandleFunc("/terminate", s.wrap(s.handleTerminate))
	s.mux.HandleFunc("/set_state", s.wrap(s.handleSetState))
	s.mux.HandleFunc("/whitelist", s.wrap(s.handleWhitelist))
	s.mux.HandleFunc("/deposit_whitelist/add", s.wrap(s.handleDepositWhitelistAdd))
	s.mux.HandleFunc("/deposit_whitelist/remove", s.wrap(s.handleDepositWhitelistRemove))
	s.mux.HandleFunc("/ft_on_transfer", s.wrap(s.handleFTOnTransfer))
	s.mux.HandleFunc("/mft_on_transfer", s.wrap(s.handleMFTOnTransfer))
	s.mux.HandleFunc("/proxy_mft_transfer", s.wrap(s.handleProxyMFTTransfer))
	s.mux.HandleFunc("/proxy_mft_transfer_call", s.wrap(s.handleProxyMFTTransferCall))

	return s
}

// Mux exposes the wired *http.ServeMux for the caller's listener.
func (s *Server) Mux() *http.ServeMux { return s.mux }

func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, struct {
		Error string `json:"error"`
	}{err.Error()})
}

func (s *Server) now() money.Timestamp { return s.cfg.Clock() }

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Time   string `json:"time"`
	}{"ok", time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		GitTag    string `json:"git_tag"`
		GitCommit string `json:"git_commit"`
	}{s.cfg.GitTag, s.cfg.GitCommit})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(r) {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(schema.OpenAPI)
}

// handleLockupByIndex serves GET /lockups/<index>.
func (s *Server) handleLockupByIndex(w http.ResponseWriter, r *http.Request) {
	idxStr := strings.TrimPrefix(r.URL.Path, "/lockups/")
	n, err := strconv.ParseUint(idxStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := s.cfg.Contract.GetLockup(lockup.Index(n), s.now())
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handleAccountLockups serves GET /accounts/<account_id>.
func (s *Server) handleAccountLockups(w http.ResponseWriter, r *http.Request) {
	account := lockup.AccountID(strings.TrimPrefix(r.URL.Path, "/accounts/"))
	views, err := s.cfg.Contract.GetAccountLockups(account, s.now())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleNumLockups(w http.ResponseWriter, r *http.Request) {
	n, err := s.cfg.Contract.GetNumLockups()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		NumLockups uint64 `json:"num_lockups"`
	}{n})
}

func (s *Server) handleDepositWhitelist(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Contract.GetDepositWhitelist())
}

type scheduleWire struct {
	Checkpoints []checkpointWire `json:"checkpoints"`
}

type checkpointWire struct {
	Timestamp money.Timestamp `json:"timestamp"`
	Balance   money.Balance   `json:"balance"`
}

func (s scheduleWire) toSchedule() schedule.Schedule {
	cps := make([]schedule.Checkpoint, 0, len(s.Checkpoints))
	for _, c := range s.Checkpoints {
		cps = append(cps, schedule.Checkpoint{Timestamp: c.Timestamp, Balance: c.Balance})
	}
	return schedule.New(cps)
}

func (s *Server) handleHashSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleWire
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	hash := s.cfg.Contract.HashSchedule(req.toSchedule())
	s.writeJSON(w, http.StatusOK, struct {
		Hash string `json:"hash"`
	}{hashHex(hash)})
}

func (s *Server) handleValidateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Schedule scheduleWire  `json:"schedule"`
		Total    money.Balance `json:"total"`
		Vesting  *scheduleWire `json:"vesting,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var vesting *schedule.Schedule
	if req.Vesting != nil {
		v := req.Vesting.toSchedule()
		vesting = &v
	}
	if err := s.cfg.Contract.ValidateSchedule(req.Schedule.toSchedule(), req.Total, vesting); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{true})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller lockup.AccountID `json:"caller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.cfg.Contract.Claim(r.Context(), req.Caller, s.now())
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Transferred money.Balance `json:"transferred"`
	}{amount})
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  lockup.AccountID `json:"caller"`
		Index   lockup.Index     `json:"index"`
		Vesting *scheduleWire    `json:"vesting_schedule,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var revealed *schedule.Schedule
	if req.Vesting != nil {
		v := req.Vesting.toSchedule()
		revealed = &v
	}
	refund, err := s.cfg.Contract.Terminate(r.Context(), req.Caller, req.Index, revealed, s.now())
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Refund money.Balance `json:"refund_to_terminator"`
	}{refund})
}

func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  lockup.AccountID `json:"caller"`
		Enabled bool             `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Contract.SetState(req.Caller, req.Enabled); err != nil {
		s.writeError(w, http.StatusForbidden, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{true})
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller lockup.AccountID   `json:"caller"`
		Action string             `json:"action"`
		Keys   []poolKeyWire      `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	keys := make([]acl.PoolKey, 0, len(req.Keys))
	for _, k := range req.Keys {
		keys = append(keys, k.toPoolKey())
	}
	var err error
	switch req.Action {
	case "add":
		err = s.cfg.Contract.AddToWhitelist(req.Caller, keys)
	case "remove":
		err = s.cfg.Contract.RemoveFromWhitelist(req.Caller, keys)
	default:
		s.writeError(w, http.StatusBadRequest, errUnknownAction(req.Action))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusForbidden, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{true})
}

func (s *Server) handleDepositWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	s.handleDepositWhitelistMutate(w, r, s.cfg.Contract.AddToDepositWhitelist)
}

func (s *Server) handleDepositWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	s.handleDepositWhitelistMutate(w, r, s.cfg.Contract.RemoveFromDepositWhitelist)
}

func (s *Server) handleDepositWhitelistMutate(w http.ResponseWriter, r *http.Request, fn func(caller, account lockup.AccountID) error) {
	var req struct {
		Caller  lockup.AccountID `json:"caller"`
		Account lockup.AccountID `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := fn(req.Caller, req.Account); err != nil {
		s.writeError(w, http.StatusForbidden, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{true})
}

func (s *Server) handleFTOnTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenLedger lockup.AccountID `json:"token_ledger"`
		Sender      lockup.AccountID `json:"sender"`
		Amount      money.Balance    `json:"amount"`
		Msg         json.RawMessage  `json:"msg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Contract.FTOnTransfer(req.TokenLedger, req.Sender, req.Amount, req.Msg); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Unused money.Balance `json:"unused_amount"`
	}{money.Balance{}})
}

func (s *Server) handleMFTOnTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExchangeCaller lockup.AccountID `json:"exchange_caller"`
		TokenID        string           `json:"token_id"`
		Sender         lockup.AccountID `json:"sender"`
		Amount         money.Balance    `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	grant, err := s.cfg.Contract.MFTOnTransfer(r.Context(), req.ExchangeCaller, req.TokenID, req.Sender, req.Amount, s.now())
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Grant money.Balance `json:"grant"`
	}{grant})
}

func (s *Server) handleProxyMFTTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deposit  bool             `json:"deposit"`
		Caller   lockup.AccountID `json:"caller"`
		TokenID  string           `json:"token_id"`
		Receiver lockup.AccountID `json:"receiver"`
		Amount   money.Balance    `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Contract.ProxyMFTTransfer(r.Context(), custody.Deposit(req.Deposit), req.Caller, req.TokenID, req.Receiver, req.Amount); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{true})
}

func (s *Server) handleProxyMFTTransferCall(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deposit  bool             `json:"deposit"`
		Caller   lockup.AccountID `json:"caller"`
		TokenID  string           `json:"token_id"`
		Receiver lockup.AccountID `json:"receiver"`
		Amount   money.Balance    `json:"amount"`
		Msg      string           `json:"msg"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	unused, err := s.cfg.Contract.ProxyMFTTransferCall(r.Context(), custody.Deposit(req.Deposit), req.Caller, req.TokenID, req.Receiver, req.Amount, req.Msg)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Unused money.Balance `json:"unused_amount"`
	}{unused})
}

type poolKeyWire struct {
	Exchange lockup.AccountID `json:"exchange"`
	Pool     uint64           `json:"pool"`
}

func (p poolKeyWire) toPoolKey() acl.PoolKey {
	return acl.PoolKey{Exchange: p.Exchange, Pool: p.Pool}
}

func hashHex(h [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range h {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

type errUnknownActionType string

func (e errUnknownActionType) Error() string { return "httpapi: unknown whitelist action " + string(e) }

func errUnknownAction(action string) error { return errUnknownActionType(action) }
