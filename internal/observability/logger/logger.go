// Package logger centraliza el logging estructurado del servicio.
//
// Expone un singleton zap configurado según el entorno (dev => consola
// legible, prod => JSON) y helpers tipados para los campos estándar.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controla la construcción del logger.
type Config struct {
	Env   string // dev | staging | prod
	Level string // debug | info | warn | error
}

var (
	once     sync.Once
	instance *zap.Logger
)

// Init inicializa el logger singleton con la configuración dada.
// Es idempotente: solo la primera llamada tiene efecto.
// Debe llamarse al inicio de la aplicación (main.go).
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L retorna el logger singleton.
// Si Init() no fue llamado, crea un logger por defecto (dev, info).
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Named retorna un logger con un nombre de componente.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With retorna un logger con campos adicionales.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushea cualquier buffer pendiente. Llamar con defer en main.go.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}

func build(cfg Config) *zap.Logger {
	var zc zap.Config
	if strings.EqualFold(cfg.Env, "prod") || strings.EqualFold(cfg.Env, "production") {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl := zapcore.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zapcore.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			lvl = parsed
		}
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	lg, err := zc.Build(zap.AddCaller())
	if err != nil {
		// Fallback: nunca arrancar sin logger
		lg = zap.NewNop()
	}
	return lg
}
