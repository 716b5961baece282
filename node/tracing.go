package node

import (
	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	cfg "github.com/Mukzid/anoma/config"
)

const pyroscopeAppName = "anoma"

// setupPyroscope sets up the pyroscope profiler and optionally tracing.
func setupPyroscope(instCfg *cfg.InstrumentationConfig, nodeID string) (*pyroscope.Profiler, *sdktrace.TracerProvider, error) {
	labels := map[string]string{"node_id": nodeID}

	var tp *sdktrace.TracerProvider
	if instCfg.PyroscopeTrace {
		var err error
		if tp, err = setupTracing(instCfg.PyroscopeURL, labels); err != nil {
			return nil, nil, err
		}
	}

	pflr, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: pyroscopeAppName,
		ServerAddress:   instCfg.PyroscopeURL,
		Logger:          nil, // use the noop logger by passing nil
		Tags:            labels,
		ProfileTypes:    toPyroscopeProfiles(instCfg.PyroscopeProfileTypes),
	})

	return pflr, tp, err
}

func setupTracing(addr string, labels map[string]string) (tp *sdktrace.TracerProvider, err error) {
	tp, err = tracerProviderDebug()
	if err != nil {
		return nil, err
	}

	// The tracer provider is wrapped so that goroutines get annotated with
	// the span id and pprof attaches matching labels to profiling samples.
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp,
		otelpyroscope.WithAppName(pyroscopeAppName),
		otelpyroscope.WithRootSpanOnly(true),
		otelpyroscope.WithAddSpanName(true),
		otelpyroscope.WithPyroscopeURL(addr),
		otelpyroscope.WithProfileBaselineLabels(labels),
		otelpyroscope.WithProfileBaselineURL(true),
		otelpyroscope.WithProfileURL(true),
	))

	// Propagate trace context and baggage across services and processes.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, err
}

func tracerProviderDebug() (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp))), nil
}

func toPyroscopeProfiles(profiles []string) []pyroscope.ProfileType {
	pts := make([]pyroscope.ProfileType, 0, len(profiles))
	for _, p := range profiles {
		pts = append(pts, pyroscope.ProfileType(p))
	}
	return pts
}
