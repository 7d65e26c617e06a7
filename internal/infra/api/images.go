package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"earlykickoff-backend/internal/domain"
	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/infra/logging"
	"earlykickoff-backend/internal/infra/metrics"
	"earlykickoff-backend/internal/usecase"
)

func (s *Server) handlePathImage(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(chi.URLParam(r, "*"))
	if path == "" {
		s.imageError(w, r, usecase.RoutePath, domain.ErrInvalidArgument)
		return
	}
	ref, err := s.imageUC.ResolvePath(path)
	s.serveImage(w, r, usecase.RoutePath, ref, err)
}

func (s *Server) handleProductImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.imageError(w, r, usecase.RouteProduct, domain.ErrInvalidArgument)
		return
	}
	ref, err := s.imageUC.ResolveProduct(r.Context(), id)
	s.serveImage(w, r, usecase.RouteProduct, ref, err)
}

func (s *Server) handleEventImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.imageError(w, r, usecase.RouteEvent, domain.ErrInvalidArgument)
		return
	}
	ref, err := s.imageUC.ResolveEvent(r.Context(), id)
	s.serveImage(w, r, usecase.RouteEvent, ref, err)
}

func (s *Server) handleOrderImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.imageError(w, r, usecase.RouteOrder, domain.ErrInvalidArgument)
		return
	}
	ref, err := s.imageUC.ResolveOrder(r.Context(), id)
	s.serveImage(w, r, usecase.RouteOrder, ref, err)
}

func (s *Server) handleTicketImage(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventId")
	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	if !ok || uid == "" {
		s.imageError(w, r, usecase.RouteTicket, domain.ErrInvalidArgument)
		return
	}
	ref, err := s.imageUC.ResolveTicket(r.Context(), eventID, uid)
	s.serveImage(w, r, usecase.RouteTicket, ref, err)
}

// serveImage streams the bytes behind ref; the signed storage URL stays server side.
func (s *Server) serveImage(w http.ResponseWriter, r *http.Request, route string, ref model.ImageRef, resolveErr error) {
	if resolveErr != nil {
		s.imageError(w, r, route, resolveErr)
		return
	}
	blob, err := s.imageUC.Open(r.Context(), route, ref)
	if err != nil {
		s.imageError(w, r, route, err)
		return
	}
	defer blob.Body.Close()

	h := w.Header()
	h.Set("Content-Type", blob.ContentType)
	h.Set("Cache-Control", blob.CacheControl)
	if blob.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(blob.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	metrics.IncImageProxy(route, http.StatusOK)
	if _, err := io.Copy(w, blob.Body); err != nil {
		logging.With(r.Context(), s.log).Debug().Err(err).Str("route", route).Msg("image stream aborted")
	}
}

func (s *Server) imageError(w http.ResponseWriter, r *http.Request, route string, err error) {
	status, msg := statusFor(err)
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		msg = "invalid image reference"
	case status == http.StatusInternalServerError:
		logging.With(r.Context(), s.log).Error().Err(err).Str("route", route).Msg("image proxy")
	}
	metrics.IncImageProxy(route, status)
	writeError(w, status, msg)
}
