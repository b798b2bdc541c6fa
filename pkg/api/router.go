package api

import (
	"context"

	"go.uber.org/zap"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/config"
)

// HandlerFunc serves one route for an identified caller.
type HandlerFunc func(ctx context.Context, req Request, caller models.Identity) (Response, error)

// Router dispatches on the API Gateway method and resource template, e.g.
// "POST /orders/{orderId}/cancel".
type Router struct {
	routes       map[string]HandlerFunc
	logger       *zap.Logger
	trustHeaders bool
}

// NewRouter builds a router for the given APP_ENV. Identity headers are only
// honoured in the local environment.
func NewRouter(logger *zap.Logger, appEnv string) *Router {
	return &Router{
		routes:       map[string]HandlerFunc{},
		logger:       logger,
		trustHeaders: appEnv == config.EnvLocal,
	}
}

// Handle registers h for a method and API Gateway resource template.
func (r *Router) Handle(method, resource string, h HandlerFunc) {
	r.routes[method+" "+resource] = h
}

// Staff wraps h so only cashiers and managers reach it.
func Staff(h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req Request, caller models.Identity) (Response, error) {
		if !caller.IsStaff() {
			return Forbidden()
		}
		return h(ctx, req, caller)
	}
}

// Manager wraps h so only managers reach it.
func Manager(h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req Request, caller models.Identity) (Response, error) {
		if caller.Role != models.RoleManager {
			return Forbidden()
		}
		return h(ctx, req, caller)
	}
}

// Serve is the Lambda entry point.
func (r *Router) Serve(ctx context.Context, req Request) (Response, error) {
	h, ok := r.routes[req.HTTPMethod+" "+req.Resource]
	if !ok {
		return NotFound()
	}
	caller := Identity(req, r.trustHeaders)
	if caller.UserID == "" {
		return Forbidden()
	}
	r.logger.Debug("handling request",
		zap.String("method", req.HTTPMethod),
		zap.String("resource", req.Resource),
		zap.String("user_id", caller.UserID),
	)
	return h(ctx, req, caller)
}
