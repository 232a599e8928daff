package httpapi

import (
	"errors"
	"net/http"
	"time"

	"callsheet.org/internal/auth"
	"callsheet.org/internal/ids"
	"callsheet.org/internal/production"
)

type createResourceRequest struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
}

type updateResourceRequest struct {
	Title string `json:"title"`
}

func (a *API) handleResourceCreate(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())
	project, ok := ProjectFromContext(r.Context())
	if !ok {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}

	var req createResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if !production.KnownKind(req.Kind) {
		writeFailure(w, http.StatusBadRequest, "unknown resource kind", nil)
		return
	}
	if req.Title == "" {
		writeFailure(w, http.StatusBadRequest, "title is required", nil)
		return
	}

	now := time.Now().UTC()
	resource := &production.Resource{
		ID:        ids.New(),
		Kind:      req.Kind,
		ProjectID: project.ID,
		Title:     req.Title,
		Owner:     account.ID,
		CreatedBy: account.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.resources.Create(r.Context(), resource); err != nil {
		a.failRequest(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resource)
}

func (a *API) handleResourceList(w http.ResponseWriter, r *http.Request) {
	project, ok := ProjectFromContext(r.Context())
	if !ok {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}
	kind := r.PathValue("kind")
	if !production.KnownKind(kind) {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}
	items, err := a.resources.ListByProject(r.Context(), kind, project.ID)
	if err != nil {
		a.failRequest(w, err)
		return
	}
	if items == nil {
		items = []*production.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleResourceGet(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if !production.KnownKind(kind) {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}
	resource, err := a.resources.FindByID(r.Context(), kind, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, production.ErrNotFound) {
			err = auth.ErrResourceNotFound
		}
		a.failRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (a *API) handleResourceUpdate(w http.ResponseWriter, r *http.Request) {
	resource, ok := ResourceFromContext(r.Context())
	if !ok {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}
	var req updateResourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.Title == "" {
		writeFailure(w, http.StatusBadRequest, "title is required", nil)
		return
	}
	resource.Title = req.Title
	resource.UpdatedAt = time.Now().UTC()
	if err := a.resources.Update(r.Context(), resource); err != nil {
		a.failRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (a *API) handleResourceDelete(w http.ResponseWriter, r *http.Request) {
	resource, ok := ResourceFromContext(r.Context())
	if !ok {
		a.failRequest(w, auth.ErrResourceNotFound)
		return
	}
	if err := a.resources.Delete(r.Context(), resource.Kind, resource.ID); err != nil {
		a.failRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
