package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homevia/homevia-backend/api/controllers"
	"github.com/homevia/homevia-backend/api/middleware"
	"github.com/homevia/homevia-backend/internal/deals"
	"github.com/homevia/homevia-backend/internal/notifications"
	"github.com/homevia/homevia-backend/internal/visits"
	"github.com/homevia/homevia-backend/pkg/config"
	"github.com/homevia/homevia-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	visitService visits.Service,
	dealService deals.Service,
	notificationService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/visits", func(r chi.Router) {
			r.Post("/", controllers.RequestVisit(visitService, logg))
			r.Post("/{visitId}/approve", controllers.ApproveVisit(visitService, logg))
			r.Post("/{visitId}/reject", controllers.RejectVisit(visitService, logg))
			r.Post("/{visitId}/counter", controllers.CounterProposeVisit(visitService, logg))
			r.Post("/{visitId}/complete", controllers.CompleteVisit(visitService, logg))
			r.Post("/{visitId}/cancel", controllers.CancelVisit(visitService, logg))
		})

		r.Route("/offers", func(r chi.Router) {
			r.Post("/", controllers.CreateOffer(dealService, logg))
			r.Post("/{offerId}/accept", controllers.AcceptOffer(dealService, logg))
			r.Post("/{offerId}/reject", controllers.RejectOffer(dealService, logg))
			r.Post("/{offerId}/pay-token", controllers.PayOfferToken(dealService, logg))
			r.Post("/{offerId}/finalize", controllers.FinalizeOffer(dealService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationService, logg))
		})
	})

	return r
}
