package diagnostic

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service owns the root logger and hands out the diagnostic handlers of the other services.
type Service struct {
	c      Config
	stdout io.Writer
	stderr io.Writer
	closer io.Closer
	level  zap.AtomicLevel

	Logger *zap.Logger
}

func NewService(c Config, stdout, stderr io.Writer) *Service {
	return &Service{
		c:      c,
		stdout: stdout,
		stderr: stderr,
		level:  zap.NewAtomicLevel(),
		Logger: zap.NewNop(),
	}
}

func (s *Service) Open() error {
	var output io.Writer
	switch s.c.File {
	case "STDERR":
		output = s.stderr
	case "STDOUT":
		output = s.stdout
	default:
		dir := path.Dir(s.c.File)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		f, err := os.OpenFile(s.c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		output = f
		s.closer = f
	}

	if err := s.SetLevel(s.c.Level); err != nil {
		return err
	}

	config := zap.NewProductionEncoderConfig()
	config.TimeKey = "ts"
	config.LevelKey = "lvl"
	config.MessageKey = "msg"
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeDuration = zapcore.StringDurationEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(s.c.Encoding) {
	case "logfmt":
		encoder = zaplogfmt.NewEncoder(config)
	case "json":
		encoder = zapcore.NewJSONEncoder(config)
	default:
		return fmt.Errorf("unknown log encoding %s", s.c.Encoding)
	}

	s.Logger = zap.New(zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(output)), s.level))
	return nil
}

func (s *Service) Close() error {
	s.Logger.Sync()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *Service) SetLevel(level string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}
	s.level.SetLevel(l)
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO":
		return zapcore.InfoLevel, nil
	case "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "OFF":
		return zapcore.FatalLevel + 1, nil
	}
	return 0, fmt.Errorf("unknown log level %s", level)
}

func (s *Service) NewOpsGenieHandler() *OpsGenieHandler {
	return &OpsGenieHandler{
		l: s.Logger.With(zap.String("service", "opsgenie")),
	}
}

func (s *Service) NewStorageHandler() *StorageHandler {
	return &StorageHandler{
		l: s.Logger.With(zap.String("service", "storage")),
	}
}

func (s *Service) NewRulesHandler() *RulesHandler {
	return &RulesHandler{
		l: s.Logger.With(zap.String("service", "rules")),
	}
}

func (s *Service) NewServerHandler() *ServerHandler {
	return &ServerHandler{
		l: s.Logger.With(zap.String("source", "srv")),
	}
}

func (s *Service) NewCmdHandler() *CmdHandler {
	return &CmdHandler{
		l: s.Logger.With(zap.String("service", "run")),
	}
}
