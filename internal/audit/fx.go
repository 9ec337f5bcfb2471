package audit

import (
	"github.com/smallbiznis/voucherportal/internal/audit/repository"
	"github.com/smallbiznis/voucherportal/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
