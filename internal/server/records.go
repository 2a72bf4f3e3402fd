package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"codeberg.org/snonux/sahachari/internal/storage"
)

type recordJSON struct {
	Key    string         `json:"key"`
	Record storage.Record `json:"record"`
}

// storageError maps storage failures onto status codes.
func (s *Server) storageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		_ = c.Error(err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, storage.ErrInvalidCollection),
		errors.Is(err, storage.ErrReservedField),
		errors.Is(err, storage.ErrInvalidValue):
		s.badRequest(c, err)
	default:
		s.internalError(c, err)
	}
}

// listRecords returns a collection ordered by key. ?q= filters by substring
// over every field.
func (s *Server) listRecords(c *gin.Context) {
	store, err := s.svc.Store()
	if err != nil {
		s.internalError(c, err)
		return
	}

	var filter storage.Filter
	if q := c.Query("q"); q != "" {
		filter = storage.Contains(q)
	}
	out := []recordJSON{}
	for e, err := range store.List(c.Request.Context(), c.Param("collection"), filter) {
		if err != nil {
			s.storageError(c, err)
			return
		}
		out = append(out, recordJSON{Key: e.Key, Record: e.Record})
	}
	c.JSON(http.StatusOK, gin.H{"records": out})
}

func (s *Server) getRecord(c *gin.Context) {
	store, err := s.svc.Store()
	if err != nil {
		s.internalError(c, err)
		return
	}
	rec, err := store.Get(c.Request.Context(), c.Param("collection"), c.Param("key"))
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordJSON{Key: c.Param("key"), Record: rec})
}

// putRecord stores the JSON object of string fields in the body.
func (s *Server) putRecord(c *gin.Context) {
	var rec storage.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		s.badRequest(c, err)
		return
	}
	store, err := s.svc.Store()
	if err != nil {
		s.internalError(c, err)
		return
	}
	if err := store.Put(c.Request.Context(), c.Param("collection"), c.Param("key"), rec); err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordJSON{Key: c.Param("key"), Record: rec.Clone()})
}

func (s *Server) deleteRecord(c *gin.Context) {
	store, err := s.svc.Store()
	if err != nil {
		s.internalError(c, err)
		return
	}
	if err := store.Delete(c.Request.Context(), c.Param("collection"), c.Param("key")); err != nil {
		s.storageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
