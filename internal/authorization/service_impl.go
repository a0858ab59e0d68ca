package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	"github.com/smallbiznis/vindesk/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectTicket  = "ticket"
	ObjectPayment = "payment"

	RoleOperator = "role:operator"
	RoleSystem   = "role:system"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

// Service answers whether an actor may perform a desk action. Actors are
// plain numeric ids; roles are casbin groupings persisted next to the
// tickets.
type Service struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize reports whether actorID holds a role that grants action.
func (s *Service) Authorize(ctx context.Context, actorID int64, action string) (bool, error) {
	if actorID <= 0 {
		return false, nil
	}
	action = strings.TrimSpace(action)
	object, ok := objectOf(action)
	if !ok {
		return false, ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject(actorID), object, action)
	if err != nil {
		return false, err
	}
	if !allowed {
		logger.WithContext(ctx, s.log).Debug("authorization denied",
			zap.Int64("actor_id", actorID),
			zap.String("action", action),
		)
	}
	return allowed, nil
}

// GrantRole adds actorID to role. Granting an existing membership is a no-op.
func (s *Service) GrantRole(ctx context.Context, actorID int64, role string) error {
	if actorID <= 0 {
		return ErrInvalidActor
	}
	role = normalizeRole(role)
	if role != RoleOperator && role != RoleSystem {
		return ErrUnknownRole
	}
	added, err := s.enforcer.AddGroupingPolicy(subject(actorID), role)
	if err != nil {
		return err
	}
	if added {
		logger.WithContext(ctx, s.log).Info("role granted",
			zap.Int64("actor_id", actorID),
			zap.String("role", role),
		)
	}
	return nil
}

// RevokeRole removes actorID from role.
func (s *Service) RevokeRole(ctx context.Context, actorID int64, role string) error {
	if actorID <= 0 {
		return ErrInvalidActor
	}
	_, err := s.enforcer.RemoveGroupingPolicy(subject(actorID), normalizeRole(role))
	return err
}

// Roles lists the roles held by actorID.
func (s *Service) Roles(actorID int64) ([]string, error) {
	return s.enforcer.GetRolesForUser(subject(actorID))
}

func subject(actorID int64) string {
	return fmt.Sprintf("actor:%d", actorID)
}

func normalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if !strings.HasPrefix(role, "role:") {
		role = "role:" + role
	}
	return role
}

// objectOf maps "ticket.claim" to "ticket".
func objectOf(action string) (string, bool) {
	object, _, ok := strings.Cut(action, ".")
	if !ok || object == "" {
		return "", false
	}
	return object, true
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{RoleOperator, ObjectTicket, lifecycledomain.ActionTicketClaim},
		{RoleOperator, ObjectTicket, lifecycledomain.ActionTicketFulfill},

		{RoleSystem, ObjectTicket, lifecycledomain.ActionTicketClaim},
		{RoleSystem, ObjectTicket, lifecycledomain.ActionTicketFulfill},
		{RoleSystem, ObjectPayment, lifecycledomain.ActionPaymentComplete},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
