package httpapi

import (
	"net/http"

	"weltgrid/action"
	"weltgrid/geom"
)

type moveRequest struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, action.KindInvalidBody, "malformed move request")
		return
	}

	result, actErr := s.pipeline.Move(agentIDFrom(r), req.X, req.Z)
	s.recordOutcome("move", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, action.KindInvalidBody, "malformed chat request")
		return
	}

	result, actErr := s.pipeline.Chat(agentIDFrom(r), req.Message)
	s.recordOutcome("chat", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type vec3Request struct {
	X, Y, Z float64
}

type buildPrimitiveRequest struct {
	Shape    string      `json:"shape"`
	Position vec3Request `json:"position"`
	Rotation vec3Request `json:"rotation"`
	Scale    vec3Request `json:"scale"`
	Color    string      `json:"color"`
}

func (req buildPrimitiveRequest) toActionRequest() action.BuildPrimitiveRequest {
	return action.BuildPrimitiveRequest{
		Shape:    req.Shape,
		Position: geom.Vec3{X: req.Position.X, Y: req.Position.Y, Z: req.Position.Z},
		Rotation: geom.Vec3{X: req.Rotation.X, Y: req.Rotation.Y, Z: req.Rotation.Z},
		Scale:    geom.Vec3{X: req.Scale.X, Y: req.Scale.Y, Z: req.Scale.Z},
		Color:    req.Color,
	}
}

func (s *Server) handleBuildPrimitive(w http.ResponseWriter, r *http.Request) {
	var req buildPrimitiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, action.KindInvalidBody, "malformed build_primitive request")
		return
	}

	primitive, actErr := s.pipeline.BuildPrimitive(agentIDFrom(r), req.toActionRequest())
	s.recordOutcome("build_primitive", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, primitive)
}

type buildMultiRequest struct {
	Primitives []buildPrimitiveRequest `json:"primitives"`
}

func (s *Server) handleBuildMulti(w http.ResponseWriter, r *http.Request) {
	var req buildMultiRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, action.KindInvalidBody, "malformed build_multi request")
		return
	}

	reqs := make([]action.BuildPrimitiveRequest, len(req.Primitives))
	for i, item := range req.Primitives {
		reqs[i] = item.toActionRequest()
	}

	results, actErr := s.pipeline.BuildMulti(agentIDFrom(r), reqs)
	s.recordOutcome("build_multi", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type blueprintStartRequest struct {
	Name    string  `json:"name"`
	AnchorX float64 `json:"anchorX"`
	AnchorZ float64 `json:"anchorZ"`
}

func (s *Server) handleBlueprintStart(w http.ResponseWriter, r *http.Request) {
	var req blueprintStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, action.KindInvalidBody, "malformed build_blueprint_start request")
		return
	}

	result, actErr := s.pipeline.BuildBlueprintStart(agentIDFrom(r), s.catalog, req.Name, geom.Vec2XZ{X: req.AnchorX, Z: req.AnchorZ})
	s.recordOutcome("build_blueprint_start", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBlueprintContinue(w http.ResponseWriter, r *http.Request) {
	result, actErr := s.pipeline.BuildBlueprintContinue(agentIDFrom(r))
	s.recordOutcome("build_blueprint_continue", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBlueprintCancel(w http.ResponseWriter, r *http.Request) {
	result, actErr := s.pipeline.BuildBlueprintCancel(agentIDFrom(r))
	s.recordOutcome("build_blueprint_cancel", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type directiveCreateRequest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

func (s *Server) handleDirectiveCreate(w http.ResponseWriter, r *http.Request) {
	var req directiveCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, action.KindInvalidBody, "malformed directive request")
		return
	}

	result, actErr := s.pipeline.CreateDirective(req.ID, req.Description)
	s.recordOutcome("directive_create", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type directiveVoteRequest struct {
	DirectiveID string `json:"directiveId"`
}

func (s *Server) handleDirectiveVote(w http.ResponseWriter, r *http.Request) {
	var req directiveVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, action.KindInvalidBody, "malformed directive vote request")
		return
	}

	result, actErr := s.pipeline.CastDirectiveVote(req.DirectiveID, agentIDFrom(r))
	s.recordOutcome("directive_vote", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type directiveCompleteRequest struct {
	DirectiveID  string `json:"directiveId"`
	RewardAmount int    `json:"rewardAmount"`
}

func (s *Server) handleDirectiveComplete(w http.ResponseWriter, r *http.Request) {
	var req directiveCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, action.KindInvalidBody, "malformed directive completion request")
		return
	}

	result, actErr := s.pipeline.CompleteDirective(req.DirectiveID, req.RewardAmount)
	s.recordOutcome("directive_complete", actErr)
	if actErr != nil {
		writeActionError(w, actErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
