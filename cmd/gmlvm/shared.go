package main

import (
	"context"
	"fmt"
	"os"

	"j5.nz/gml/internal/build"
	"j5.nz/gml/internal/host"
	"j5.nz/gml/internal/stdlib"
	"j5.nz/gml/internal/symbol"
)

const mainScript = "main"

// buildFile registers path's contents as the "main" script alongside
// internal/stdlib's natives and compiles the whole host.
func buildFile(path string) (*host.Host, *build.Assets, *build.Debug, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("gmlvm: %w", err)
	}

	h := host.New(logger)
	if err := stdlib.Register(h); err != nil {
		return nil, nil, nil, fmt.Errorf("gmlvm: registering stdlib: %w", err)
	}
	if err := h.RegisterScript(symbol.Intern(mainScript), string(src)); err != nil {
		return nil, nil, nil, fmt.Errorf("gmlvm: %w", err)
	}

	assets, debug, err := build.Build(context.Background(), h)
	if err != nil {
		return h, assets, debug, err
	}
	return h, assets, debug, nil
}
