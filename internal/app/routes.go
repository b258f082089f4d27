package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Use(otelchi.Middleware("checkout-engine", otelchi.WithChiRoutes(r)))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(app.recoverPanic)

	r.Get("/healthcheck", app.GetHealth)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(app.sessionManager.LoadAndSave)
		r.Use(app.ensureSession)
		r.Use(app.bindEngine)

		r.Route("/basket", func(r chi.Router) {
			r.Get("/", app.GetBasketHandler)
			r.Delete("/", app.ClearBasketHandler)
			r.Post("/items", app.AddBasketItemHandler)
			r.Delete("/items/{courseId}", app.RemoveBasketItemHandler)
			r.Put("/credit", app.UpdateBasketCreditHandler)
			r.Post("/promo", app.ApplyPromoCodeHandler)
		})

		r.Route("/payment-methods", func(r chi.Router) {
			r.Get("/", app.ListPaymentMethodsHandler)
			r.Post("/", app.CreatePaymentMethodHandler)
			r.Delete("/{id}", app.DeletePaymentMethodHandler)
			r.Put("/{id}/default", app.SetDefaultPaymentMethodHandler)
		})

		r.Get("/payment-config", app.GetPaymentConfigHandler)

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", app.GetCheckoutHandler)
			r.Post("/", app.PlaceOrderHandler)
			r.Post("/confirm", app.ConfirmPaymentHandler)
			r.Post("/cancel", app.CancelCheckoutHandler)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", app.ListOrdersHandler)
			r.Get("/{orderId}", app.GetOrderHandler)
			r.Post("/{orderId}/cancel", app.CancelOrderHandler)
			r.Post("/{orderId}/refunds", app.RefundOrderHandler)
		})
	})

	return r
}
