package diag

import "go.uber.org/zap"

// NewLogger builds the process-wide logging configuration: components take
// the returned *zap.Logger by constructor injection rather than reaching
// for a package-level global.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
