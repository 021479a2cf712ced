package queue

import (
	"fmt"

	"github.com/hibiken/asynq"

	"xpose-triage/pkg/logger"
)

// asynqLogger routes asynq's internal logging through zerolog
type asynqLogger struct {
	log *logger.Logger
}

var _ asynq.Logger = (*asynqLogger)(nil)

// NewAsynqLogger adapts log to asynq.Logger
func NewAsynqLogger(log *logger.Logger) asynq.Logger {
	return &asynqLogger{log: log.WithComponent("asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
