package fblog

import (
	"fmt"
	"io"
	"log/syslog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"funnelboard/internal/models/fbconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// syslogWriter maps zerolog levels to syslog priorities. zerolog hands the
// level to WriteLevel, so lines are never parsed back.
type syslogWriter struct {
	w *syslog.Writer
}

func (s syslogWriter) Write(p []byte) (int, error) {
	return len(p), s.w.Info(string(p))
}

func (s syslogWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	msg := string(p)
	var err error
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		err = s.w.Debug(msg)
	case zerolog.WarnLevel:
		err = s.w.Warning(msg)
	case zerolog.ErrorLevel:
		err = s.w.Err(msg)
	case zerolog.FatalLevel, zerolog.PanicLevel:
		err = s.w.Crit(msg)
	default:
		err = s.w.Info(msg)
	}
	return len(p), err
}

// InitLogger replaces the global zerolog logger with one writing to the
// console in development and to the configured file and syslog outputs.
func InitLogger(cfg fbconfig.LoggerConfig, production bool) error {
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file)) + ":" + strconv.Itoa(line)
	}
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	writers, err := outputs(cfg, production)
	if err != nil {
		return err
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Caller().Logger()

	log.Info().
		Bool("production", production).
		Str("level", cfg.Level).
		Bool("file", cfg.File.Enable).
		Bool("syslog", cfg.Syslog.Enable).
		Msg("logger ready")
	return nil
}

func outputs(cfg fbconfig.LoggerConfig, production bool) ([]io.Writer, error) {
	var writers []io.Writer
	if !production {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}
	if cfg.File.Enable {
		w, err := fileOutput(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		writers = append(writers, w)
	}
	if cfg.Syslog.Enable {
		w, err := syslogOutput(cfg.Syslog)
		if err != nil {
			return nil, fmt.Errorf("syslog: %w", err)
		}
		writers = append(writers, w)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	return writers, nil
}

func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}

func fileOutput(cfg fbconfig.LoggerFileConfig) (io.Writer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("logger.file.path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}, nil
}

func syslogOutput(cfg fbconfig.LoggerSyslogConfig) (io.Writer, error) {
	tag := cfg.Tag
	if tag == "" {
		tag = "funnelboard"
	}
	priority := cfg.Priority
	if priority == 0 {
		priority = syslog.LOG_INFO | syslog.LOG_LOCAL0
	}

	var w *syslog.Writer
	var err error
	if cfg.Protocol == "" || cfg.Address == "" {
		w, err = syslog.New(priority, tag)
	} else {
		w, err = syslog.Dial(cfg.Protocol, cfg.Address, priority, tag)
	}
	if err != nil {
		return nil, err
	}
	return syslogWriter{w: w}, nil
}
