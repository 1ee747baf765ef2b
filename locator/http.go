package locator

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/domlocator/engine"
	"github.com/hazyhaar/domlocator/kit"
	"github.com/hazyhaar/domlocator/poll"
	"github.com/hazyhaar/domlocator/safeurl"
)

// Routes mounts the HTTP surface on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/engines", kit.HTTPHandler(s.engines, func(*http.Request) (any, error) { return nil, nil }, statusOf))
	r.Post("/query", kit.HTTPHandler(s.query, kit.DecodeJSON[QueryRequest], statusOf))
	r.Post("/create", kit.HTTPHandler(s.create, kit.DecodeJSON[CreateRequest], statusOf))
	r.Post("/wait", kit.HTTPHandler(s.wait, kit.DecodeJSON[WaitRequest], statusOf))
}

func statusOf(err error) int {
	var unknown *engine.UnknownEngineError
	switch {
	case errors.As(err, &unknown),
		errors.Is(err, engine.ErrMalformedSelector),
		errors.Is(err, engine.ErrEmptySelector),
		errors.Is(err, engine.ErrNotQueryableRoot),
		errors.Is(err, ErrNoSource),
		errors.Is(err, ErrUnknownWaitState),
		errors.Is(err, safeurl.ErrUnsafe):
		return http.StatusBadRequest
	case errors.Is(err, ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoPageLoader):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, poll.ErrCanceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
