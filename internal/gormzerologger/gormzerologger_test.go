package gormzerologger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, ParseLevel("silent"))
	assert.Equal(t, logger.Info, ParseLevel("trace"))
	assert.Equal(t, logger.Warn, ParseLevel("warn"))
	assert.Equal(t, logger.Error, ParseLevel("error"))
	assert.Equal(t, logger.Warn, ParseLevel(""))
}

func TestTraceUsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	ctx := zl.WithContext(context.Background())

	l := New("error")
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))

	assert.Contains(t, buf.String(), "database query error")
	assert.Contains(t, buf.String(), "SELECT 1")
}

func TestTraceIgnoresRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)
	ctx := zl.WithContext(context.Background())

	l := New("error")
	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gorm.ErrRecordNotFound)

	assert.Empty(t, buf.String())
}

func TestLogModeReturnsCopy(t *testing.T) {
	l := New("warn")
	quiet := l.LogMode(logger.Silent).(*Logger)
	assert.Equal(t, logger.Silent, quiet.LogLevel)
	assert.Equal(t, logger.Warn, l.LogLevel)
}
