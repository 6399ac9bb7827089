package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/emergent/skillsmarket/pkg/marketplace"
)

// handleListClients handles GET /api/clients
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.service.ListClients(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, nonNil(clients))
}

// handleCreateClient handles POST /api/clients
func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var in marketplace.CreateClientInput
	if !decode(w, r, maxJSONBody, &in) {
		return
	}

	client, err := s.service.CreateClient(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, client)
}

// handleListProjects handles GET /api/projects
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects(r.Context(), r.URL.Query().Get("clientId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, nonNil(projects))
}

// handleCreateProject handles POST /api/projects
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in marketplace.CreateProjectInput
	if !decode(w, r, maxJSONBody, &in) {
		return
	}

	project, err := s.service.CreateProject(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, project)
}

// handleGetProject handles GET /api/projects/{id}
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.service.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, project)
}

// handleProjectSkills handles GET /api/projects/{id}/skills
func (s *Server) handleProjectSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.service.ProjectSkills(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, nonNil(skills))
}
