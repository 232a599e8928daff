package httpapi

import (
	"net/http"
	"time"

	"callsheet.org/internal/auth"
	"callsheet.org/internal/ids"
	"callsheet.org/internal/production"
)

type createProjectRequest struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

type updateProjectRequest struct {
	Title  *string `json:"title,omitempty"`
	Status *string `json:"status,omitempty"`
}

type setMemberRequest struct {
	AccountID string `json:"account_id"`
	Tier      string `json:"tier"`
}

func (a *API) handleProjectList(w http.ResponseWriter, r *http.Request) {
	projects, err := a.projects.List(r.Context())
	if err != nil {
		a.failRequest(w, err)
		return
	}
	if projects == nil {
		projects = []*production.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": projects})
}

func (a *API) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())

	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.Title == "" {
		writeFailure(w, http.StatusBadRequest, "title is required", nil)
		return
	}
	status := production.StatusPlanning
	if req.Status != "" {
		parsed, err := production.ParseStatus(req.Status)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "unknown project status", nil)
			return
		}
		status = parsed
	}

	now := time.Now().UTC()
	project := &production.Project{
		ID:        ids.New(),
		Title:     req.Title,
		Status:    status,
		Owner:     account.ID,
		CreatedBy: account.ID,
		Members:   map[string]auth.Tier{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.projects.Create(r.Context(), project); err != nil {
		a.failRequest(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (a *API) handleProjectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.projects.Stats(r.Context())
	if err != nil {
		a.failRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     stats.Total,
		"by_status": stats.ByStatus,
		"active":    stats.Active(),
	})
}

func (a *API) handleProjectGet(w http.ResponseWriter, r *http.Request) {
	project, ok := ProjectFromContext(r.Context())
	if !ok {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *API) handleProjectUpdate(w http.ResponseWriter, r *http.Request) {
	project, ok := ProjectFromContext(r.Context())
	if !ok {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.Title != nil {
		if *req.Title == "" {
			writeFailure(w, http.StatusBadRequest, "title cannot be empty", nil)
			return
		}
		project.Title = *req.Title
	}
	if req.Status != nil {
		status, err := production.ParseStatus(*req.Status)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "unknown project status", nil)
			return
		}
		project.Status = status
	}
	project.UpdatedAt = time.Now().UTC()
	if err := a.projects.Update(r.Context(), project); err != nil {
		a.failRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (a *API) handleProjectDelete(w http.ResponseWriter, r *http.Request) {
	project, ok := ProjectFromContext(r.Context())
	if !ok {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}
	if err := a.projects.Delete(r.Context(), project.ID); err != nil {
		a.failRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleProjectMemberSet(w http.ResponseWriter, r *http.Request) {
	project, ok := ProjectFromContext(r.Context())
	if !ok {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}
	var req setMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.AccountID == "" {
		writeFailure(w, http.StatusBadRequest, "account_id is required", nil)
		return
	}
	if req.AccountID == project.Owner {
		writeFailure(w, http.StatusBadRequest, "the owner's access cannot be reassigned", nil)
		return
	}

	if project.Members == nil {
		project.Members = map[string]auth.Tier{}
	}
	tier := auth.ParseTier(req.Tier)
	if tier == auth.TierNone {
		// Granting "none" revokes the membership.
		delete(project.Members, req.AccountID)
	} else {
		project.Members[req.AccountID] = tier
	}
	project.UpdatedAt = time.Now().UTC()
	if err := a.projects.Update(r.Context(), project); err != nil {
		a.failRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"account_id": req.AccountID,
		"tier":       tier.String(),
	})
}
