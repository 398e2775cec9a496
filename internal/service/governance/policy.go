package governance

import (
	"context"
	"log/slog"

	"pii-tagger/internal/ddl"
	"pii-tagger/internal/domain"
)

// PolicyService creates the masking policy and binds it to the governance tag.
type PolicyService struct {
	logger *slog.Logger
}

// NewPolicyService creates a new PolicyService.
func NewPolicyService(logger *slog.Logger) *PolicyService {
	return &PolicyService{logger: logger}
}

// EnsureMaskingPolicy creates the policy if it does not exist. The policy
// returns the raw value for unmaskedRole and the masked marker for every
// other role.
func (s *PolicyService) EnsureMaskingPolicy(ctx context.Context, sess domain.Session, target domain.Target, policy, unmaskedRole string) error {
	return execStep(ctx, sess, domain.DDLExecutionError{Step: "create masking policy " + policy}, func() (string, error) {
		return ddl.CreateMaskingPolicy(target.Database, target.Schema, policy, unmaskedRole, domain.MaskedMarker)
	})
}

// BindPolicyToTag attaches the policy to the tag so every tagged column is
// masked. Rebinding the same policy is a no-op in effect.
func (s *PolicyService) BindPolicyToTag(ctx context.Context, sess domain.Session, target domain.Target, policy, tag string) error {
	return execStep(ctx, sess, domain.DDLExecutionError{Step: "bind masking policy " + policy + " to tag " + tag}, func() (string, error) {
		return ddl.SetTagMaskingPolicy(target.Database, target.Schema, tag, policy)
	})
}
