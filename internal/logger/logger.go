package logger

import (
	"go-pos-sync/internal/config"
	"go-pos-sync/internal/database"

	"go.uber.org/zap"
)

// NewLogger builds the application logger. Besides the console core, every
// entry is mirrored asynchronously into the "logs" collection so job
// failures remain inspectable after the process is gone.
func NewLogger(cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Enable Caller so the function name lands in the stored record
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	dbWriter := NewDBLogWriter(mongodb, cfg)

	finalCore := NewDBCore(baseLogger.Core(), dbWriter)

	return zap.New(finalCore, zap.AddCaller()), nil
}
