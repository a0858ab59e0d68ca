package payment

import (
	"github.com/smallbiznis/vindesk/internal/payment/repository"
	paymentservice "github.com/smallbiznis/vindesk/internal/payment/service"
	"github.com/smallbiznis/vindesk/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
