package logx

import (
	"go.uber.org/zap"
)

// L is the process logger. It is a no-op until Init runs so packages and
// tests can log unconditionally.
var L = zap.NewNop()

func Init(env string) error {
	cfg := zap.NewProductionConfig()

	// Local dev readability
	if env != "prod" {
		cfg = zap.NewDevelopmentConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	L = logger
	return nil
}

func Sync() {
	_ = L.Sync()
}
