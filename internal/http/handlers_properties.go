package http

import (
	"net/http"
	"strconv"

	"rentbook/internal/core"
	"rentbook/internal/log"
)

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.store.Properties()).Write(w)
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	var p core.Property
	if err := decodeJSON(w, r, &p, propertyAmountFields...); err != nil {
		writeBodyError(w, r, err)
		return
	}
	p = sanitizeProperty(p)
	p.ID = 0
	if err := p.Validate(); err != nil {
		UnprocessableEntityError(r, err.Error()).Write(w)
		return
	}

	stored, err := s.store.AddProperty(r.Context(), p)
	if err != nil {
		writeStoreError(w, r, log.OpAddProperty, err)
		return
	}
	requestLogger(r).InfoContext(r.Context(), "Property created",
		log.FieldPropertyID, stored.ID,
		"name", stored.Name)

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/properties/"+strconv.FormatInt(int64(stored.ID), 10)).
		JSON(stored).
		Write(w)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	p, ok := s.store.PropertyByID(id)
	if !ok {
		NotFoundError(r, "property not found").Write(w)
		return
	}
	NewResponse().JSON(p).Write(w)
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	var patch core.PropertyPatch
	if err := decodeJSON(w, r, &patch, propertyAmountFields...); err != nil {
		writeBodyError(w, r, err)
		return
	}
	patch = sanitizePatch(patch)

	current, ok := s.store.PropertyByID(id)
	if !ok {
		NotFoundError(r, "property not found").Write(w)
		return
	}
	if err := patch.Apply(current).Validate(); err != nil {
		UnprocessableEntityError(r, err.Error()).Write(w)
		return
	}

	updated, found, err := s.store.UpdateProperty(r.Context(), id, patch)
	if err != nil {
		writeStoreError(w, r, log.OpUpdateProperty, err)
		return
	}
	if !found {
		NotFoundError(r, "property not found").Write(w)
		return
	}
	requestLogger(r).InfoContext(r.Context(), "Property updated", log.FieldPropertyID, id)
	NewResponse().JSON(updated).Write(w)
}

// handleDeleteProperty removes the property and its expenses. Deleting an
// unknown id is not an error.
func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(r, err.Error()).Write(w)
		return
	}
	if err := s.store.DeleteProperty(r.Context(), id); err != nil {
		writeStoreError(w, r, log.OpDeleteProperty, err)
		return
	}
	requestLogger(r).InfoContext(r.Context(), "Property deleted", log.FieldPropertyID, id)
	NoContent().Write(w)
}
