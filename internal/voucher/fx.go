package voucher

import (
	"github.com/smallbiznis/voucherportal/internal/voucher/repository"
	"github.com/smallbiznis/voucherportal/internal/voucher/service"
	"go.uber.org/fx"
)

var Module = fx.Module("voucher.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
