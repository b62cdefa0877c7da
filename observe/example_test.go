package observe_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/olbboy/blenderops/observe"
)

func ExampleNewObserver() {
	cfg := observe.Config{
		ServiceName: "blenderops",
		Version:     "1.0.0",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: false},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	}

	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	fmt.Println("Observer created successfully")
	// Output:
	// Observer created successfully
}

func ExampleNewObserver_validation() {
	// Missing service name triggers validation error
	cfg := observe.Config{
		ServiceName: "",
	}

	ctx := context.Background()
	_, err := observe.NewObserver(ctx, cfg)
	if errors.Is(err, observe.ErrMissingServiceName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Caught: missing service name
}

func ExampleConfig_Validate() {
	cfg := observe.Config{
		ServiceName: "blenderops",
		Version:     "1.0.0",
		Tracing: observe.TracingConfig{
			Enabled:   true,
			Exporter:  "stdout",
			SamplePct: 0.5, // 50% sampling
		},
		Metrics: observe.MetricsConfig{
			Enabled:  true,
			Exporter: "prometheus",
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
	}

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid:", err)
	} else {
		fmt.Println("Configuration is valid")
	}
	// Output:
	// Configuration is valid
}

func ExampleOpMeta_SpanName() {
	meta := observe.OpMeta{
		Op:   "get_scene_info",
		Kind: observe.KindQuery,
	}
	fmt.Println(meta.SpanName())

	meta2 := observe.OpMeta{Op: "execute_code"}
	fmt.Println(meta2.SpanName())
	// Output:
	// blender.exec.get_scene_info
	// blender.exec.execute_code
}

func ExampleOpMeta_Validate() {
	meta := observe.OpMeta{Op: "create_object", Kind: observe.KindMutate}
	if err := meta.Validate(); err != nil {
		fmt.Println("Invalid:", err)
	} else {
		fmt.Println("Valid op metadata")
	}

	if errors.Is((observe.OpMeta{}).Validate(), observe.ErrMissingOp) {
		fmt.Println("Caught: missing op")
	}
	// Output:
	// Valid op metadata
	// Caught: missing op
}

func ExampleNewLoggerWithWriter() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf)

	ctx := context.Background()
	logger.Info(ctx, "bridge connected", observe.Field{Key: "addr", Value: "localhost:9876"})

	fmt.Println("Logged message contains 'bridge connected':", bytes.Contains(buf.Bytes(), []byte("bridge connected")))
	// Output:
	// Logged message contains 'bridge connected': true
}

func ExampleLogger_withComponent() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("debug", &buf)

	cacheLogger := logger.WithComponent("cache")
	cacheLogger.Debug(context.Background(), "cache hit", observe.Field{Key: "key", Value: "scene:info"})

	output := buf.String()
	fmt.Println("Contains component:", bytes.Contains([]byte(output), []byte(`"component":"cache"`)))
	fmt.Println("Contains key:", bytes.Contains([]byte(output), []byte("scene:info")))
	// Output:
	// Contains component: true
	// Contains key: true
}

func ExampleMiddleware_Wrap() {
	ctx := context.Background()

	cfg := observe.Config{
		ServiceName: "blenderops",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     observe.LoggingConfig{Enabled: false},
	}
	obs, _ := observe.NewObserver(ctx, cfg)
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	mw, _ := observe.MiddlewareFromObserver(obs)

	// The inner function is where the bridge round-trip happens.
	execFn := func(ctx context.Context, op observe.OpMeta, params map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"status":"success"}`), nil
	}

	wrapped := mw.Wrap(execFn)

	result, err := wrapped(ctx, observe.OpMeta{
		Op:   "get_scene_info",
		Kind: observe.KindQuery,
	}, nil)

	if err != nil {
		fmt.Println("Error:", err)
	} else {
		fmt.Printf("Result: %s\n", result)
	}
	// Output:
	// Result: {"status":"success"}
}

func ExampleParseLogLevel() {
	levels := []string{"debug", "info", "warn", "error", "unknown"}
	for _, s := range levels {
		level := observe.ParseLogLevel(s)
		fmt.Printf("%s -> %s\n", s, level)
	}
	// Output:
	// debug -> debug
	// info -> info
	// warn -> warn
	// error -> error
	// unknown -> info
}
