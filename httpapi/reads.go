package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"weltgrid/sync"
)

func (s *Server) handleStateLite(w http.ResponseWriter, r *http.Request) {
	lite := sync.GetStateLite(s.store)
	if ifNoneMatchHit(r, lite.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", lite.ETag)
	writeJSON(w, http.StatusOK, lite)
}

func (s *Server) handleAgentsLite(w http.ResponseWriter, r *http.Request) {
	lite := sync.GetAgentsLite(s.store)
	if ifNoneMatchHit(r, lite.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", lite.ETag)
	writeJSON(w, http.StatusOK, lite)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := sync.GetState(s.store)
	if ifNoneMatchHit(r, state.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", state.ETag)
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSpatialSummary(w http.ResponseWriter, r *http.Request) {
	view := sync.GetSpatialSummary(s.store, s.analyzer)
	if ifNoneMatchHit(r, view.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", view.ETag)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePrimitives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GetPrimitives())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.AllAgents())
}

func (s *Server) handleAgentByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	agent, ok := s.store.GetAgent(id)
	if !ok {
		writeError(w, http.StatusNotFound, "agent/not-found", "no such agent")
		return
	}

	type agentWithCredits struct {
		Agent   any `json:"agent"`
		Credits int `json:"credits"`
	}
	writeJSON(w, http.StatusOK, agentWithCredits{Agent: agent, Credits: sync.CreditsFor(s.ledger, id)})
}
