package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/flexinfer/nemsgen/internal/metrics"
	"github.com/flexinfer/nemsgen/pkg/nems"
)

// Check is a boolean expression that must hold for a built system.
type Check struct {
	Name    string `json:"name,omitempty"`
	Expr    string `json:"expr"`
	Message string `json:"message,omitempty"`
}

// Environment summarizes s for check expressions:
//
//	processors        total processor count
//	models            code -> {name, processors, start, end, forcing}
//	connections       direct couplings as "SRC -> DST"
//	mediations        mediated routes as "SRC -> MED -> DST"
//	sequence          run sequence route strings
//	interval_seconds  coupling interval
//	duration_hours    simulation length
func Environment(s *nems.ModelingSystem) map[string]interface{} {
	models := make(map[string]interface{})
	for _, m := range s.Models() {
		models[m.Type().Code()] = map[string]interface{}{
			"name":       m.Name(),
			"processors": m.Processors(),
			"start":      m.StartProcessor(),
			"end":        m.EndProcessor(),
			"forcing":    m.IsForcing(),
		}
	}

	connections := []string{}
	for _, c := range s.Sequence().Connections() {
		connections = append(connections, c.Source.Type().Code()+" -> "+c.Target.Type().Code())
	}
	mediations := []string{}
	for _, m := range s.Sequence().Mediations() {
		mediations = append(mediations, strings.Join(m.Route(), " -> "))
	}

	return map[string]interface{}{
		"processors":       s.Processors(),
		"models":           models,
		"connections":      connections,
		"mediations":       mediations,
		"sequence":         s.SequenceStrings(),
		"interval_seconds": int(s.Interval() / time.Second),
		"duration_hours":   s.Duration().Hours(),
	}
}

// RunChecks evaluates checks against env. Failed and erroring checks are
// reported as validation errors keyed by check name.
func (e *CheckEvaluator) RunChecks(checks []Check, env map[string]interface{}) *ValidationResult {
	result := &ValidationResult{Valid: true}

	for i, c := range checks {
		path := c.Name
		if path == "" {
			path = fmt.Sprintf("/checks/%d", i)
		}

		ok, err := e.EvaluateBool(c.Expr, env)
		switch {
		case err != nil:
			metrics.ChecksTotal.WithLabelValues("error").Inc()
			result.Errors = append(result.Errors, ValidationError{Path: path, Message: err.Error()})
		case !ok:
			metrics.ChecksTotal.WithLabelValues("failed").Inc()
			msg := c.Message
			if msg == "" {
				msg = fmt.Sprintf("check failed: %s", c.Expr)
			}
			result.Errors = append(result.Errors, ValidationError{Path: path, Message: msg})
		default:
			metrics.ChecksTotal.WithLabelValues("passed").Inc()
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
