package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ghuser/agritrack/pkg/app"
	"github.com/ghuser/agritrack/services/batch/application/handlers"
	appsvcs "github.com/ghuser/agritrack/services/batch/application/services"
)

// BatchRoutes registers batch endpoints on the provided chi router.
func BatchRoutes(r chi.Router, a *app.Application) {
	svcs := appsvcs.New(a)
	r.Group(func(r chi.Router) {
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", handlers.NewPostBatchHandler(svcs).Execute)
			r.Get("/", handlers.NewListBatchesHandler(svcs).Execute)
			r.Route("/{payload}", func(r chi.Router) {
				r.Get("/", handlers.NewGetBatchHandler(svcs).Execute)
				r.Get("/qr", handlers.NewGetBatchQRHandler(svcs).Execute)
				r.Post("/transport", handlers.NewPostTransportHandler(svcs).Execute)
				r.Post("/seller", handlers.NewPostSellerHandler(svcs).Execute)
			})
		})
	})
}
