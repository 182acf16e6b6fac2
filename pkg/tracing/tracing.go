package tracing

import (
	"fmt"

	"signal_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/uber/jaeger-client-go"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type Config struct {
	Enabled bool
	Service string
	Host    string
	Port    int
	// SampleRate is the probability a trace is kept; zero keeps all.
	SampleRate float64
}

// InitTracer installs a Jaeger tracer as the global opentracing tracer. When
// tracing is disabled the global no-op tracer stays in place.
func InitTracer(conf Config) (opentracing.Tracer, func(), error) {
	if !conf.Enabled {
		return opentracing.NoopTracer{}, func() {}, nil
	}
	sampler := &jCfg.SamplerConfig{Type: jaeger.SamplerTypeConst, Param: 1}
	if conf.SampleRate > 0 && conf.SampleRate < 1 {
		sampler = &jCfg.SamplerConfig{Type: jaeger.SamplerTypeProbabilistic, Param: conf.SampleRate}
	}
	cfg := &jCfg.Configuration{
		ServiceName: conf.Service,
		Sampler:     sampler,
		Reporter: &jCfg.ReporterConfig{
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(jCfg.Metrics(metrics.NullFactory))
	if err != nil {
		return nil, nil, errors.Wrap(err, "jaeger tracer")
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, func() {
		if err := closer.Close(); err != nil {
			logger.Error("close jaeger tracer: %v", err)
		}
	}, nil
}
