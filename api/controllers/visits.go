package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/homevia/homevia-backend/api/responses"
	"github.com/homevia/homevia-backend/api/validators"
	"github.com/homevia/homevia-backend/internal/visits"
	pkgerrors "github.com/homevia/homevia-backend/pkg/errors"
	"github.com/homevia/homevia-backend/pkg/logger"
)

type requestVisitBody struct {
	PropertyID string `json:"propertyId" validate:"required,uuid4"`
}

type visitSlotBody struct {
	Slot string `json:"slot" validate:"required"`
}

// RequestVisit books a pending viewing for the caller.
func RequestVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body requestVisitBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		propertyID, err := uuid.Parse(body.PropertyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid property id"))
			return
		}

		visit, err := svc.Request(r.Context(), userID, visits.RequestInput{PropertyID: propertyID})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, visit)
	}
}

// ApproveVisit confirms a pending visit at the given slot.
func ApproveVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, visitID, err := visitCall(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body visitSlotBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		visit, err := svc.Approve(r.Context(), userID, visitID, body.Slot)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, visit)
	}
}

// RejectVisit declines a pending visit.
func RejectVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, visitID, err := visitCall(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		visit, err := svc.Reject(r.Context(), userID, visitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, visit)
	}
}

// CounterProposeVisit answers a pending visit with a different slot.
func CounterProposeVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, visitID, err := visitCall(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body visitSlotBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		visit, err := svc.CounterPropose(r.Context(), userID, visitID, body.Slot)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, visit)
	}
}

// CompleteVisit marks an approved visit as having happened.
func CompleteVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, visitID, err := visitCall(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		visit, err := svc.Complete(r.Context(), userID, visitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, visit)
	}
}

// CancelVisit withdraws an approved visit.
func CancelVisit(svc visits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, visitID, err := visitCall(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		visit, err := svc.Cancel(r.Context(), userID, visitID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, visit)
	}
}

func visitCall(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, err := callerID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	visitID, err := uuid.Parse(chi.URLParam(r, "visitId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid visit id")
	}
	return userID, visitID, nil
}
