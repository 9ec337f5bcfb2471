package observability

import (
	"strings"

	"github.com/smallbiznis/voucherportal/internal/config"
)

const defaultServiceName = "voucherportal"

// Config is the observability slice of the portal configuration with
// defaults applied.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	QuietRoutes []string
}

func LoadConfig(cfg config.Config) Config {
	obs := cfg.Observability

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	level := obs.LogLevel
	if level == "" {
		level = "info"
	}
	protocol := obs.OTLPProtocol
	if protocol != "http" {
		protocol = "grpc"
	}
	ratio := obs.TraceSampling
	if ratio < 0 || ratio > 1 {
		ratio = 0.1
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             level,
		LogFormat:            obs.LogFormat,
		OtelEnabled:          obs.TraceEnabled && strings.TrimSpace(cfg.OTLPEndpoint) != "",
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
		QuietRoutes:          obs.QuietRoutes,
	}
}

// Debug is true for debug logging or any non-production style environment.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

// IsQuietRoute reports whether route is health or scrape traffic that should
// not produce info logs or spans.
func (c Config) IsQuietRoute(route string) bool {
	route = strings.TrimSpace(route)
	for _, quiet := range c.QuietRoutes {
		if strings.EqualFold(route, quiet) {
			return true
		}
	}
	return false
}
