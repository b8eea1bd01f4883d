package services

import (
	"fmt"

	"github.com/dmitrijs2005/filegate/internal/common"
	sc "github.com/dmitrijs2005/filegate/internal/server/config"
)

// Quotas resolves a caller's declared plan to a maximum upload size.
//
// Plans are a closed enumeration fixed by configuration. An unknown or
// missing plan resolves to the configured default plan — failing open toward
// the most restrictive configured choice, never toward the most permissive
// plan.
//
// NOTE: On the single-shot presigned path this check is advisory, not a
// security boundary. The gateway never sees the uploaded bytes, so a client
// can declare one size and PUT another; real size enforcement is whatever
// the storage service itself imposes. Tests must not assume enforcement.
type Quotas struct {
	limits      map[string]int64
	defaultPlan string
}

// NewQuotas builds a resolver from the configured plan limits.
func NewQuotas(cfg *sc.Config) *Quotas {
	return &Quotas{
		limits:      cfg.PlanLimits,
		defaultPlan: cfg.DefaultPlan,
	}
}

// Resolve normalizes a caller-supplied plan value: known plans pass through,
// everything else becomes the default plan.
func (q *Quotas) Resolve(plan string) string {
	if _, ok := q.limits[plan]; ok {
		return plan
	}
	return q.defaultPlan
}

// LimitFor returns the byte ceiling for plan, resolving unknown values to
// the default plan first.
func (q *Quotas) LimitFor(plan string) int64 {
	return q.limits[q.Resolve(plan)]
}

// Admit checks a declared upload size against the plan's limit. A
// non-positive size is a validation error; an oversized one yields a
// *common.QuotaError carrying the violated limit.
func (q *Quotas) Admit(declaredSize int64, plan string) error {
	if declaredSize <= 0 {
		return fmt.Errorf("%w: declared size must be positive", common.ErrorValidation)
	}

	limit := q.LimitFor(plan)
	if declaredSize > limit {
		return &common.QuotaError{Limit: limit}
	}

	return nil
}
