package trading

import (
	"context"
	"fmt"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
)

// Router dispatches each action to the executor of the selected venue
type Router struct {
	executors map[domain.Venue]domain.Executor
	log       zerolog.Logger
}

// NewRouter creates an empty router
func NewRouter(log zerolog.Logger) *Router {
	return &Router{
		executors: make(map[domain.Venue]domain.Executor),
		log:       log.With().Str("service", "executor_router").Logger(),
	}
}

// Register binds an executor to a venue, replacing any previous binding
func (r *Router) Register(venue domain.Venue, executor domain.Executor) {
	r.executors[venue] = executor
}

// Venues returns the venues with a registered executor
func (r *Router) Venues() []domain.Venue {
	out := make([]domain.Venue, 0, len(r.executors))
	for _, v := range domain.Venues {
		if _, ok := r.executors[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Execute implements domain.Executor
func (r *Router) Execute(ctx context.Context, action domain.RebalanceAction, settings domain.Settings) (domain.TradeLog, error) {
	executor, ok := r.executors[settings.Venue]
	if !ok {
		return domain.TradeLog{}, fmt.Errorf("%w: %q", ErrUnknownVenue, settings.Venue)
	}

	r.log.Debug().
		Str("venue", string(settings.Venue)).
		Str("symbol", action.Symbol).
		Str("side", string(action.Side)).
		Msg("Routing action")
	return executor.Execute(ctx, action, settings)
}
