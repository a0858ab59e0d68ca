package authorization

import (
	"context"

	"github.com/smallbiznis/vindesk/internal/config"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
	fx.Provide(func(s *Service) lifecycledomain.Authorizer { return s }),
	fx.Invoke(GrantConfiguredOperators),
)

// GrantConfiguredOperators makes every id in OPERATOR_IDS an operator.
func GrantConfiguredOperators(cfg config.Config, s *Service, log *zap.Logger) error {
	ctx := context.Background()
	for _, id := range cfg.OperatorIDs {
		if err := s.GrantRole(ctx, id, RoleOperator); err != nil {
			return err
		}
	}
	log.Named("authorization").Info("operators loaded", zap.Int("count", len(cfg.OperatorIDs)))
	return nil
}
