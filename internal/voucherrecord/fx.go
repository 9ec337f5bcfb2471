package voucherrecord

import (
	"github.com/smallbiznis/voucherportal/internal/voucherrecord/repository"
	"github.com/smallbiznis/voucherportal/internal/voucherrecord/service"
	"go.uber.org/fx"
)

var Module = fx.Module("voucherrecord.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
