package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarly/bazaarly-backend/api/controllers"
	"github.com/bazaarly/bazaarly-backend/api/middleware"
	"github.com/bazaarly/bazaarly-backend/internal/booking"
	"github.com/bazaarly/bazaarly-backend/internal/events"
	"github.com/bazaarly/bazaarly-backend/internal/layout"
	"github.com/bazaarly/bazaarly-backend/internal/publication"
	"github.com/bazaarly/bazaarly-backend/pkg/config"
	"github.com/bazaarly/bazaarly-backend/pkg/db"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/redis"
)

// RouterParams carry the wired services the HTTP surface exposes.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Events      events.Service
	Layout      layout.Service
	Publication publication.Service
	Booking     booking.Service
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	bookingPolicy := middleware.NewRateLimitPolicy(
		"booking",
		cfg.RateLimit.BookingWindow,
		cfg.RateLimit.BookingLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(params)))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/events", func(r chi.Router) {
			r.Get("/{eventId}", controllers.EventDetail(params.Events, logg))
			r.Get("/{eventId}/stalls", controllers.LayoutList(params.Layout, logg))
			r.Get("/{eventId}/availability", controllers.Availability(params.Booking, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg,
					enums.MemberRoleOrganizer.String(),
					enums.MemberRoleAdmin.String(),
				))
				r.Post("/", controllers.EventCreate(params.Events, logg))
				r.Get("/", controllers.EventList(params.Events, logg))
				r.Put("/{eventId}/stalls", controllers.LayoutDefine(params.Layout, logg))
				r.Get("/{eventId}/publish-check", controllers.EventPublishCheck(params.Publication, logg))
				r.Post("/{eventId}/publish", controllers.EventPublish(params.Publication, logg))
				r.Post("/{eventId}/close", controllers.EventClose(params.Events, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.MemberRoleVendor.String(), logg))
				r.With(middleware.RateLimit(bookingPolicy, params.Redis, logg)).
					Post("/{eventId}/stalls/{stallId}/hold", controllers.HoldRequest(params.Booking, logg))
			})
		})

		r.Route("/stalls", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.MemberRoleVendor.String(), logg))
			r.Post("/{stallId}/confirm", controllers.HoldConfirm(params.Booking, logg))
			r.Post("/{stallId}/cancel", controllers.HoldCancel(params.Booking, logg))
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.MemberRoleVendor.String(), logg))
			r.Get("/holds", controllers.VendorHolds(params.Booking, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.MemberRoleAdmin.String(), logg))
		r.Post("/stalls/{stallId}/release", controllers.AdminReleaseStall(params.Booking, logg))
	})

	return r
}

func readinessDeps(params RouterParams) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if params.DB != nil {
		deps["database"] = params.DB
	}
	if params.Redis != nil {
		deps["redis"] = params.Redis
	}
	return deps
}
