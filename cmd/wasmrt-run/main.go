// Command wasmrt-run compiles a single WASM module and invokes one of its
// exports with a literal input, printing the decoded result. It exists as
// a thin, driveable entry point over pkg/wasmengine (which owns the
// module cache and, when configured, an instance pool) and
// pkg/wasminstance — a deployment embedding this module directly would
// wire those packages the same way.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/logging"
	"github.com/orama-labs/wasmrt/pkg/wasmengine"
)

func setupLogger() *logging.ColoredLogger {
	logger, err := logging.NewDefaultLogger(logging.ComponentEngine)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	return logger
}

func parseFlags(logger *logging.ColoredLogger) (wasmPath, export, input, configPath *string, timeout *time.Duration) {
	wasmPath = flag.String("wasm", "", "Path to the compiled WASM module (required)")
	export = flag.String("export", "", "Name of the exported function to invoke (required)")
	input = flag.String("input", "", "Literal bytes to pass as the call payload")
	configPath = flag.String("config", "", "Path to an engine config YAML file (defaults applied if omitted)")
	timeout = flag.Duration("timeout", 30*time.Second, "Wall-clock bound for the call, as a belt-and-suspenders outer bound over metering")
	flag.Parse()

	if *wasmPath == "" || *export == "" {
		logger.Error("both -wasm and -export are required")
		flag.Usage()
		os.Exit(2)
	}
	return
}

func loadConfig(logger *logging.ColoredLogger, configPath string) *wasmengine.Config {
	if configPath == "" {
		return wasmengine.DefaultConfig()
	}
	cfg, err := wasmengine.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load engine config", zap.String("path", configPath), zap.Error(err))
		os.Exit(1)
	}
	return cfg
}

func main() {
	logger := setupLogger()
	wasmPath, export, input, configPath, timeout := parseFlags(logger)
	cfg := loadConfig(logger, *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	wasmBytes, err := os.ReadFile(*wasmPath)
	if err != nil {
		logger.Error("failed to read WASM file", zap.String("path", *wasmPath), zap.Error(err))
		os.Exit(1)
	}

	engine, err := wasmengine.New(ctx, cfg, logger.Logger,
		wasmengine.WithHostFunctions("env", wasmengine.LogHostFunctions(logger.Logger)))
	if err != nil {
		logger.Error("failed to construct engine", zap.Error(err))
		os.Exit(1)
	}
	defer engine.Close(ctx)

	compiled, key, err := engine.CompileCached(ctx, wasmBytes)
	if err != nil {
		logger.Error("failed to compile module", zap.Error(err))
		os.Exit(1)
	}
	logger.ComponentInfo(logging.ComponentModuleCache, "module compiled", zap.Binary("key", key[:]))

	inst, err := engine.Acquire(ctx, key, compiled, "guest")
	if err != nil {
		logger.Error("failed to acquire a guest instance", zap.Error(err))
		os.Exit(1)
	}
	defer engine.Release(ctx, key, inst)

	meter := wasmengine.NewMeter(cfg.MeteringLimit)
	callCtx, cancelMeter := wasmengine.WithMeter(ctx, meter)
	defer cancelMeter()
	callCtx = wasmengine.WithCallContext(callCtx, wasmengine.NewCallContext())

	env, ok, err := inst.Call(callCtx, *export, []byte(*input), 0)
	if err != nil {
		logger.Error("call failed", zap.String("export", *export), zap.Error(err))
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "guest returned an error: %s\n", env.Payload)
		os.Exit(1)
	}
	fmt.Printf("%s\n", env.Payload)
}
