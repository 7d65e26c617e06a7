package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"earlykickoff-backend/internal/domain/model"
	"earlykickoff-backend/internal/infra/logging"
	"earlykickoff-backend/internal/usecase"
)

// handleWebhook answers 200 for every callback it could read, whatever the
// payment's fate, so the gateway stops retrying.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)

	raw, err := io.ReadAll(io.LimitReader(r.Body, s.opts.MaxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read body")
		return
	}
	cb, err := model.ParseSTKCallback(raw)
	switch {
	case errors.Is(err, model.ErrMalformedCallback):
		log.Warn().Err(err).Msg("unparseable callback")
		writeError(w, http.StatusInternalServerError, "malformed callback body")
		return
	case err != nil:
		log.Warn().Err(err).Msg("callback without stkCallback")
		writeError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	out, err := s.payUC.HandleCallback(r.Context(), cb, json.RawMessage(raw))
	if err != nil {
		log.Error().Err(err).Str("checkout_request_id", cb.CheckoutRequestID).Msg("callback processing failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": out.Message})
}

// initiateRequest is shape-checked here; which purchase it describes is the
// use case's call.
type initiateRequest struct {
	OrderID     int64  `json:"order_id" validate:"omitempty,gt=0"`
	EventID     int64  `json:"event_id" validate:"omitempty,gt=0"`
	Quantity    int    `json:"quantity" validate:"omitempty,gt=0,lte=100"`
	Plan        string `json:"plan" validate:"omitempty,max=32"`
	PhoneNumber string `json:"phone_number" validate:"required,max=20"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	sub, _ := authUser(r.Context())

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	res, err := s.payUC.Initiate(r.Context(), usecase.InitiateRequest{
		AuthUserID:  sub,
		OrderID:     req.OrderID,
		EventID:     req.EventID,
		Quantity:    req.Quantity,
		Plan:        req.Plan,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusBadRequest {
			// validation messages carry no provider detail
			msg = err.Error()
		}
		if status >= 500 {
			logging.With(r.Context(), s.log).Error().Err(err).Msg("initiate payment")
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	sub, _ := authUser(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	v, err := s.payUC.Get(r.Context(), sub, id)
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleVIPStatus(w http.ResponseWriter, r *http.Request) {
	sub, _ := authUser(r.Context())
	st, err := s.subUC.IsVIP(r.Context(), sub)
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// validationMessage names the first offending field using its JSON name.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("invalid %s: failed %s", fe.Field(), fe.Tag())
	}
	return "invalid request"
}
