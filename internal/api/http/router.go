package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	platformhealth "github.com/hendisantika/order-events/platform/health/http"
)

// NewRouter создаёт и настраивает HTTP роутер
// readiness - функция готовности сервиса (ping БД);
// при false health endpoint возвращает 503 Service Unavailable
func NewRouter(handler *Handler, readiness func() bool) chi.Router {
	router := chi.NewRouter()

	router.Route("/api/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrder)
		r.Get("/", handler.GetAllOrders)
		r.Get("/{orderNumber}", withOrderNumber(handler.GetOrderByNumber))
		r.Get("/customer/{email}", func(w http.ResponseWriter, req *http.Request) {
			handler.GetOrdersByCustomer(w, req, chi.URLParam(req, "email"))
		})
		r.Put("/{orderNumber}/confirm", withOrderNumber(handler.ConfirmOrder))
		r.Put("/{orderNumber}/ship", withOrderNumber(handler.ShipOrder))
		r.Put("/{orderNumber}/deliver", withOrderNumber(handler.DeliverOrder))
		r.Put("/{orderNumber}/cancel", withOrderNumber(handler.CancelOrder))
	})

	router.Get("/health", platformhealth.Handler(readiness))

	return router
}

func withOrderNumber(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r, chi.URLParam(r, "orderNumber"))
	}
}
