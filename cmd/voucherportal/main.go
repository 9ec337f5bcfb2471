package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/voucherportal/internal/clock"
	"github.com/smallbiznis/voucherportal/internal/config"
	"github.com/smallbiznis/voucherportal/internal/migration"
	"github.com/smallbiznis/voucherportal/internal/observability"
	"github.com/smallbiznis/voucherportal/internal/scheduler"
	"github.com/smallbiznis/voucherportal/internal/server"
	"github.com/smallbiznis/voucherportal/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
