package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/bazaarly/bazaarly-backend/api/responses"
	"github.com/bazaarly/bazaarly-backend/api/validators"
	"github.com/bazaarly/bazaarly-backend/internal/layout"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
)

type stallDefinition struct {
	StallNumber int             `json:"stallNumber" validate:"required,min=1"`
	Category    string          `json:"category" validate:"max=100"`
	Price       decimal.Decimal `json:"price"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Width       float64         `json:"width" validate:"required,gt=0"`
	Height      float64         `json:"height" validate:"required,gt=0"`
}

type defineStallsRequest struct {
	Stalls []stallDefinition `json:"stalls" validate:"required,min=1,dive"`
}

// LayoutDefine replaces the whole stall canvas for a draft event.
func LayoutDefine(service layout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := parsePathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		organizerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req defineStallsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inputs := make([]layout.StallInput, 0, len(req.Stalls))
		for _, stall := range req.Stalls {
			inputs = append(inputs, layout.StallInput{
				StallNumber: stall.StallNumber,
				Category:    stall.Category,
				Price:       stall.Price,
				X:           stall.X,
				Y:           stall.Y,
				Width:       stall.Width,
				Height:      stall.Height,
			})
		}

		stalls, err := service.DefineStalls(r.Context(), layout.DefineStallsInput{
			EventID:     eventID,
			OrganizerID: organizerID,
			Stalls:      inputs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStallResponses(stalls))
	}
}

// LayoutList returns the stall canvas for an event.
func LayoutList(service layout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := parsePathUUID(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stalls, err := service.GetStalls(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStallResponses(stalls))
	}
}
