package service

import (
	"crypto/subtle"
	"strings"
	"sync"

	"github.com/GoPolymarket/fundgate/internal/config"
	"github.com/GoPolymarket/fundgate/internal/model"
	"golang.org/x/time/rate"
)

const DefaultOperatorID = "default-operator"

// OperatorRegistry holds the API clients allowed to call the registry and
// their rate limiters.
type OperatorRegistry struct {
	mu              sync.RWMutex
	operators       map[string]*model.Operator // key: api key
	limiters        map[string]*rate.Limiter   // key: operator id
	defaultOperator *model.Operator
}

func NewOperatorRegistry(cfg *config.Config) *OperatorRegistry {
	r := &OperatorRegistry{
		operators: make(map[string]*model.Operator),
		limiters:  make(map[string]*rate.Limiter),
	}
	for _, oc := range cfg.Auth.Operators {
		r.Register(&model.Operator{
			ID:       strings.TrimSpace(oc.ID),
			Name:     oc.Name,
			APIKey:   strings.TrimSpace(oc.APIKey),
			ReadOnly: oc.ReadOnly,
			Rate:     model.RateLimitConfig{QPS: oc.QPS, Burst: oc.Burst},
		})
	}

	// Without API keys every request acts as the default operator.
	if !cfg.Auth.RequireAPIKey {
		def := &model.Operator{
			ID:   DefaultOperatorID,
			Name: "Default Operator",
			Rate: model.RateLimitConfig{QPS: 10, Burst: 20},
		}
		r.mu.Lock()
		r.limiters[def.ID] = newLimiter(def.Rate)
		r.defaultOperator = def
		r.mu.Unlock()
	}
	return r
}

func (r *OperatorRegistry) Register(op *model.Operator) {
	if op == nil || op.ID == "" || op.APIKey == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[op.APIKey] = op
	r.limiters[op.ID] = newLimiter(op.Rate)
}

// ByAPIKey compares keys in constant time.
func (r *OperatorRegistry) ByAPIKey(apiKey string) (*model.Operator, bool) {
	if apiKey == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key, op := range r.operators {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return op, true
		}
	}
	return nil, false
}

func (r *OperatorRegistry) List() []*model.Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Operator, 0, len(r.operators))
	for _, op := range r.operators {
		out = append(out, op)
	}
	return out
}

func (r *OperatorRegistry) Default() *model.Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultOperator
}

func (r *OperatorRegistry) Limiter(operatorID string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[operatorID]
}

// Zero QPS means unlimited.
func newLimiter(cfg model.RateLimitConfig) *rate.Limiter {
	limit := rate.Limit(cfg.QPS)
	if limit == 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst == 0 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}
