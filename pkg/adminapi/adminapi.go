// Package adminapi exposes raft.Server's client operations (Apply,
// Barrier, Add, Assign, Remove, Transfer, Stats) as a small JSON-over-HTTP
// surface, for raftctl and for operators scripting a node directly. It
// deliberately does not use a generated gRPC service the way the
// peer-to-peer transport does: wire-compatible protobuf requires protoc
// codegen this module cannot run, and the admin surface here is
// operational tooling, not a replicated-state RPC path, so plain
// encoding/json over net/http is the right weight for it.
package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cuemby/raftcore/pkg/raft"
	"github.com/cuemby/raftcore/pkg/wire"
)

// ApplyRequest carries one or more command payloads to submit as a single
// batch. Payloads are whatever byte format the server's FSM expects.
type ApplyRequest struct {
	Payloads [][]byte `json:"payloads"`
}

// AddRequest registers a new non-voting member.
type AddRequest struct {
	ID      uint64 `json:"id"`
	Address string `json:"address"`
}

// AssignRequest changes an existing member's role. Role is one of
// "voter", "standby", "spare".
type AssignRequest struct {
	ID   uint64 `json:"id"`
	Role string `json:"role"`
}

// RemoveRequest drops a member from the configuration.
type RemoveRequest struct {
	ID uint64 `json:"id"`
}

// TransferRequest hands off leadership. Target 0 lets the leader pick.
type TransferRequest struct {
	Target uint64 `json:"target"`
}

// Response is the shared envelope for every endpoint: Error is set (and
// Code non-empty when the error carries a wire.Code) on failure, Values
// is populated only by /apply and /barrier.
type Response struct {
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	Values []any `json:"values,omitempty"`
}

// StatsResponse mirrors raft.Stats for JSON transport.
type StatsResponse struct {
	ID           uint64 `json:"id"`
	Role         string `json:"role"`
	LeaderID     uint64 `json:"leader_id"`
	Term         uint64 `json:"term"`
	LastLogIndex uint64 `json:"last_log_index"`
	CommitIndex  uint64 `json:"commit_index"`
	AppliedIndex uint64 `json:"applied_index"`
	NumVoters    int    `json:"num_voters"`
	NumPeers     int    `json:"num_peers"`
}

// Handler builds the admin mux for server. Mount it alongside the
// metrics/health endpoints, or stand it up on its own listener.
func Handler(server *raft.Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/apply", func(w http.ResponseWriter, r *http.Request) {
		var req ApplyRequest
		if !decode(w, r, &req) {
			return
		}
		result := <-server.Apply(req.Payloads).Done
		writeResult(w, result)
	})
	mux.HandleFunc("/v1/barrier", func(w http.ResponseWriter, r *http.Request) {
		result := <-server.Barrier().Done
		writeResult(w, result)
	})
	mux.HandleFunc("/v1/add", func(w http.ResponseWriter, r *http.Request) {
		var req AddRequest
		if !decode(w, r, &req) {
			return
		}
		result := <-server.Add(req.ID, req.Address).Done
		writeResult(w, result)
	})
	mux.HandleFunc("/v1/assign", func(w http.ResponseWriter, r *http.Request) {
		var req AssignRequest
		if !decode(w, r, &req) {
			return
		}
		role, err := parseRole(req.Role)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Error: err.Error()})
			return
		}
		result := <-server.Assign(req.ID, role).Done
		writeResult(w, result)
	})
	mux.HandleFunc("/v1/remove", func(w http.ResponseWriter, r *http.Request) {
		var req RemoveRequest
		if !decode(w, r, &req) {
			return
		}
		result := <-server.Remove(req.ID).Done
		writeResult(w, result)
	})
	mux.HandleFunc("/v1/transfer", func(w http.ResponseWriter, r *http.Request) {
		var req TransferRequest
		if !decode(w, r, &req) {
			return
		}
		result := <-server.Transfer(req.Target).Done
		writeResult(w, result)
	})
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		st := server.Stats()
		writeJSON(w, http.StatusOK, StatsResponse{
			ID: st.ID, Role: st.Role.String(), LeaderID: st.LeaderID, Term: st.Term,
			LastLogIndex: st.LastLogIndex, CommitIndex: st.CommitIndex, AppliedIndex: st.AppliedIndex,
			NumVoters: st.NumVoters, NumPeers: st.NumPeers,
		})
	})
	return mux
}

func parseRole(s string) (wire.ServerRole, error) {
	switch s {
	case "voter":
		return wire.Voter, nil
	case "standby":
		return wire.Standby, nil
	case "spare":
		return wire.Spare, nil
	default:
		return 0, errors.New("role must be one of voter, standby, spare")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: err.Error()})
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, result raft.Result) {
	if result.Err != nil {
		resp := Response{Error: result.Err.Error()}
		var werr *wire.Error
		if errors.As(result.Err, &werr) {
			resp.Code = werr.Code.String()
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, http.StatusOK, Response{Values: result.Values})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
