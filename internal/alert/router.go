// Package alert routes scored findings to event-bus topics through
// per-route CEL filter expressions, e.g. "severity_rank >= 4" or
// "rule == 'duplicate' && leakage > 5000.0".
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Router evaluates compiled alert routes against scored findings and
// publishes the matches.
type Router struct {
	env    *cel.Env
	routes []compiledRoute
	bus    domain.EventBus
}

type compiledRoute struct {
	cfg     domain.AlertRouteConfig
	program cel.Program
}

// Payload is the message body published for each matched finding.
type Payload struct {
	RunID   string               `json:"runId"`
	Route   string               `json:"route"`
	Finding domain.ScoredFinding `json:"finding"`
}

// NewRouter compiles the configured routes. A route expression that does
// not compile, or does not evaluate to bool, is a configuration error.
func NewRouter(configs []domain.AlertRouteConfig, bus domain.EventBus) (*Router, error) {
	env, err := cel.NewEnv(
		cel.Variable("rule", cel.StringType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("severity_rank", cel.IntType),
		cel.Variable("composite_score", cel.DoubleType),
		cel.Variable("leakage", cel.DoubleType),
		cel.Variable("supplier_id", cel.StringType),
		cel.Variable("category", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	r := &Router{env: env, bus: bus}
	for _, cfg := range configs {
		program, err := r.compile(cfg)
		if err != nil {
			return nil, err
		}
		r.routes = append(r.routes, compiledRoute{cfg: cfg, program: program})
	}
	return r, nil
}

func (r *Router) compile(cfg domain.AlertRouteConfig) (cel.Program, error) {
	ast, issues := r.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, &domain.ConfigurationError{
			Field:  "alert_routes." + cfg.Name,
			Reason: fmt.Sprintf("failed to compile expression: %v", issues.Err()),
		}
	}
	if ast.OutputType() != cel.BoolType {
		return nil, &domain.ConfigurationError{
			Field:  "alert_routes." + cfg.Name,
			Reason: fmt.Sprintf("expression must return bool, got %s", ast.OutputType()),
		}
	}
	program, err := r.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for route %s: %w", cfg.Name, err)
	}
	return program, nil
}

// RouteCount returns the number of compiled routes.
func (r *Router) RouteCount() int {
	return len(r.routes)
}

// Matches reports the topics of the routes a scored finding satisfies.
func (r *Router) Matches(sf *domain.ScoredFinding) []string {
	var matched []string
	for _, route := range r.routes {
		if topic := r.matchOne(route, sf); topic != "" {
			matched = append(matched, topic)
		}
	}
	return matched
}

// Dispatch publishes every (finding, matched route) pair to the route's
// topic. Publish failures are logged, not fatal: alert delivery must not
// fail the run that produced the findings.
func (r *Router) Dispatch(ctx context.Context, runID string, scored []domain.ScoredFinding) int {
	if r.bus == nil || len(r.routes) == 0 {
		return 0
	}

	dispatched := 0
	for i := range scored {
		sf := &scored[i]
		for _, route := range r.routes {
			topic := r.matchOne(route, sf)
			if topic == "" {
				continue
			}
			payload, err := json.Marshal(Payload{RunID: runID, Route: route.cfg.Name, Finding: *sf})
			if err != nil {
				slog.Error("failed to marshal alert payload",
					"route", route.cfg.Name,
					"transaction_id", sf.TransactionID,
					"error", err,
				)
				continue
			}
			if err := r.bus.Publish(ctx, topic, payload); err != nil {
				slog.Error("failed to publish alert",
					"route", route.cfg.Name,
					"topic", topic,
					"transaction_id", sf.TransactionID,
					"error", err,
				)
				continue
			}
			dispatched++
		}
	}
	return dispatched
}

func (r *Router) matchOne(route compiledRoute, sf *domain.ScoredFinding) string {
	activation := map[string]any{
		"rule":            string(sf.Rule),
		"severity":        string(sf.Severity),
		"severity_rank":   int64(sf.SeverityRank),
		"composite_score": sf.CompositeScore,
		"leakage":         sf.LeakageGBP,
		"supplier_id":     sf.SupplierID,
		"category":        sf.Category,
	}
	out, _, err := route.program.Eval(activation)
	if err != nil {
		slog.Error("alert route evaluation failed",
			"route", route.cfg.Name,
			"transaction_id", sf.TransactionID,
			"error", err,
		)
		return ""
	}
	if b, ok := out.(types.Bool); ok && bool(b) {
		return route.cfg.Topic
	}
	return ""
}
