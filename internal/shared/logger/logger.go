package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options ajusta o destino dos logs; o zero value escreve em stdout/stderr
type Options struct {
	File       string // caminho do arquivo; vazio = saída padrão
	MaxSizeMB  int
	MaxBackups int
}

func New(serviceName string, env string) (*zap.Logger, error) {
	return NewWithOptions(serviceName, env, Options{})
}

// NewWithOptions cria o logger padrão e, se File estiver definido, adiciona rotação via lumberjack
func NewWithOptions(serviceName string, env string, opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}

	// sempre garantir que serviço e env entrem como campos padrão
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	fields := zap.Fields(
		zap.String("service", serviceName),
		zap.String("env", env),
	)

	if opts.File == "" {
		return cfg.Build(fields)
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 100
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), sink, cfg.Level)
	return zap.New(core, zap.AddCaller(), fields), nil
}
