package controllers

import (
	"net/http"

	"github.com/bazaarly/bazaarly-backend/api/responses"
	"github.com/bazaarly/bazaarly-backend/api/validators"
	"github.com/bazaarly/bazaarly-backend/internal/booking"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
)

// Availability returns every reservation record for an event so clients can
// render the live stall map.
func Availability(service booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := parsePathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := service.Availability(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReservationResponses(records))
	}
}

// HoldRequest attempts a time-bounded hold on one stall for the caller.
func HoldRequest(service booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := parsePathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stallID, err := parsePathUUID(r, "stallId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := service.RequestHold(r.Context(), booking.RequestHoldInput{
			EventID:  eventID,
			StallID:  stallID,
			VendorID: vendorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toReservationResponse(record))
	}
}

type confirmHoldRequest struct {
	PaymentSourceID string `json:"paymentSourceId" validate:"required"`
}

// HoldConfirm converts the caller's live hold into a confirmed booking.
func HoldConfirm(service booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stallID, err := parsePathUUID(r, "stallId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req confirmHoldRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := service.ConfirmHold(r.Context(), booking.ConfirmHoldInput{
			StallID:         stallID,
			VendorID:        vendorID,
			PaymentSourceID: req.PaymentSourceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReservationResponse(record))
	}
}

// HoldCancel releases the caller's own hold.
func HoldCancel(service booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stallID, err := parsePathUUID(r, "stallId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := service.CancelHold(r.Context(), booking.CancelHoldInput{
			StallID:  stallID,
			VendorID: vendorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReservationResponse(record))
	}
}

// VendorHolds lists the caller's active holds across events.
func VendorHolds(service booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := service.VendorHolds(r.Context(), vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReservationResponses(records))
	}
}

type adminReleaseRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// AdminReleaseStall frees a confirmed stall through the administrative path.
func AdminReleaseStall(service booking.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stallID, err := parsePathUUID(r, "stallId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adminID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adminReleaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := service.AdminRelease(r.Context(), booking.AdminReleaseInput{
			StallID: stallID,
			AdminID: adminID,
			Reason:  req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReservationResponse(record))
	}
}
