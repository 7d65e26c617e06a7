package api

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"earlykickoff-backend/internal/infra/redis"
	"earlykickoff-backend/internal/usecase"
)

type Options struct {
	AdminAPIKey    string
	RequestTimeout time.Duration
	// InitiateLimit caps STK pushes per user per minute; 0 disables the limit.
	InitiateLimit int
	// MaxWebhookBytes bounds the callback body read.
	MaxWebhookBytes int64
}

// Server exposes the payment, membership, image proxy and admin routes.
type Server struct {
	payUC     usecase.PaymentUseCase
	subUC     usecase.SubscriptionUseCase
	imageUC   usecase.ImageUseCase
	fulfillUC usecase.FulfillmentUseCase
	auth      *Authenticator
	limiter   Limiter
	opts      Options
	validate  *validator.Validate
	log       *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	imageUC usecase.ImageUseCase,
	fulfillUC usecase.FulfillmentUseCase,
	auth *Authenticator,
	limiter Limiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.MaxWebhookBytes <= 0 {
		opts.MaxWebhookBytes = 1 << 20
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		payUC:     payUC,
		subUC:     subUC,
		imageUC:   imageUC,
		fulfillUC: fulfillUC,
		auth:      auth,
		limiter:   limiter,
		opts:      opts,
		validate:  newValidator(),
		log:       &l,
	}
}

// Router builds the full handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Post("/payments/mpesa/webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser(s.auth))
			r.With(RateLimit(s.limiter, redis.InitiateKey, s.opts.InitiateLimit, time.Minute, s.log)).
				Post("/payments/mpesa/initiate", s.handleInitiate)
			r.Get("/payments/{id}", s.handleGetPayment)
			r.Get("/me/vip", s.handleVIPStatus)
		})

		r.Route("/images", func(r chi.Router) {
			r.Get("/product/{id}", s.handleProductImage)
			r.Get("/event/{id}", s.handleEventImage)
			r.Get("/order/{id}", s.handleOrderImage)
			r.Get("/ticket/{eventId}/{uid}", s.handleTicketImage)
			r.Get("/*", s.handlePathImage)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(RequireAdminKey(s.opts.AdminAPIKey, "list_tasks", s.log)).
				Get("/fulfillment/tasks", s.handleListTasks)
			r.With(RequireAdminKey(s.opts.AdminAPIKey, "retry_task", s.log)).
				Post("/fulfillment/tasks/{id}/retry", s.handleRetryTask)
			r.With(RequireAdminKey(s.opts.AdminAPIKey, "regenerate_order_qr", s.log)).
				Post("/orders/{id}/qr", s.handleOrderQR)
		})
	})

	return Chain(r, TraceID(), RequestLog(s.log), Recover(s.log))
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
