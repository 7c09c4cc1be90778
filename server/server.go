// Provides a server type for starting and configuring the notifier.
package server

import (
	"context"
	"fmt"

	"github.com/influxdata/opsgenie-notify/keyvalue"
	"github.com/influxdata/opsgenie-notify/models"
	"github.com/influxdata/opsgenie-notify/rules"
	"github.com/influxdata/opsgenie-notify/services/diagnostic"
	"github.com/influxdata/opsgenie-notify/services/opsgenie"
	"github.com/influxdata/opsgenie-notify/services/storage"
	"github.com/influxdata/opsgenie-notify/services/tagstore"
	"github.com/pkg/errors"
)

type BuildInfo struct {
	Version string
	Commit  string
	Branch  string
}

type Diagnostic interface {
	Debug(msg string, ctx ...keyvalue.T)
	Info(msg string, ctx ...keyvalue.T)
	Error(msg string, err error, ctx ...keyvalue.T)
}

// Server represents a container for the storage and the services.
// It is built using a Config and it manages the startup and shutdown of all
// services in the proper order.
type Server struct {
	config *Config

	BuildInfo BuildInfo

	StorageService  *storage.Service
	OpsGenieService *opsgenie.Service
	Processor       *rules.Processor

	// List of services in startup order
	Services []Service
	// Map of service name to index in Services list
	ServicesByName map[string]int

	DiagService *diagnostic.Service
	Diag        Diagnostic
}

// New returns a new instance of Server built from a config.
func New(c *Config, buildInfo BuildInfo, diagService *diagnostic.Service) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s. To generate a valid configuration file run `opsgenie-notify config > opsgenie-notify.generated.conf`.", err)
	}
	d := diagService.NewServerHandler()
	s := &Server{
		config:         c,
		BuildInfo:      buildInfo,
		ServicesByName: make(map[string]int),
		DiagService:    diagService,
		Diag:           d,
		Processor:      rules.NewProcessor(diagService.NewRulesHandler()),
	}
	s.Diag.Info("opsgenie-notify starting", keyvalue.KV("version", buildInfo.Version), keyvalue.KV("commit", buildInfo.Commit))

	s.appendStorageService()
	s.appendOpsGenieService()
	return s, nil
}

func (s *Server) AppendService(name string, srv Service) {
	if _, ok := s.ServicesByName[name]; ok {
		// Should be unreachable code
		panic("cannot append service twice")
	}
	i := len(s.Services)
	s.Services = append(s.Services, srv)
	s.ServicesByName[name] = i
}

func (s *Server) appendStorageService() {
	d := s.DiagService.NewStorageHandler()
	srv := storage.NewService(s.config.Storage, d)

	s.StorageService = srv
	s.AppendService("storage", srv)
}

func (s *Server) appendOpsGenieService() {
	c := s.config.OpsGenie
	d := s.DiagService.NewOpsGenieHandler()
	srv := opsgenie.NewService(c, d)
	srv.StorageService = s.StorageService
	srv.TagLabeler = tagstore.New()

	s.OpsGenieService = srv
	s.AppendService("opsgenie", srv)
}

// Open opens all the services.
func (s *Server) Open() error {
	if err := s.startServices(); err != nil {
		s.Close()
		return err
	}
	return nil
}

func (s *Server) startServices() error {
	for _, service := range s.Services {
		s.Diag.Debug("opening service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
		if err := service.Open(); err != nil {
			return fmt.Errorf("open service %T: %s", service, err)
		}
		s.Diag.Debug("opened service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
	}
	return nil
}

// Close shuts down all services in reverse order.
func (s *Server) Close() error {
	for i := len(s.Services) - 1; i >= 0; i-- {
		service := s.Services[i]
		s.Diag.Debug("closing service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
		if err := service.Close(); err != nil {
			s.Diag.Error("error closing service", err, keyvalue.KV("service", fmt.Sprintf("%T", service)))
		}
		s.Diag.Debug("closed service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
	}
	return nil
}

// Fire applies the stored rules of the event's organization and project to the event.
// It returns the number of notifications triggered.
func (s *Server) Fire(ctx context.Context, event models.Event) (int, error) {
	if event.Group == nil {
		return 0, errors.New("event has no issue")
	}
	project := event.Group.Project
	opts, err := s.OpsGenieService.Rules(project.Organization)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load rules")
	}
	var rs []rules.Rule
	for _, o := range opts {
		if o.Project != "" && o.Project != project.Slug {
			continue
		}
		rs = append(rs, s.OpsGenieService.AsRule(o))
	}
	return s.Processor.Apply(ctx, event, rs), nil
}

// Service represents a service attached to the server.
type Service interface {
	Open() error
	Close() error
}
