// Package app wires the configured infrastructure into a running alert
// service.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mindcare/guardian/config"
	"github.com/mindcare/guardian/core/alert"
	"github.com/mindcare/guardian/core/broadcast"
	"github.com/mindcare/guardian/core/dispatch"
	"github.com/mindcare/guardian/core/geo"
	"github.com/mindcare/guardian/core/geocode"
	coremetrics "github.com/mindcare/guardian/core/metrics"
	"github.com/mindcare/guardian/core/model"
	"github.com/mindcare/guardian/core/repository"
	infrageocode "github.com/mindcare/guardian/infra/geocode"
	"github.com/mindcare/guardian/infra/logger"
	"github.com/mindcare/guardian/infra/metrics"
	"github.com/mindcare/guardian/infra/mqtt"
	"github.com/mindcare/guardian/infra/push"
	"github.com/mindcare/guardian/infra/sms"
	"github.com/mindcare/guardian/infra/storage"
	"github.com/mindcare/guardian/infra/ws"
	"github.com/mindcare/guardian/internal/eventbus"
)

// Service owns the orchestrator and every transport feeding it.
type Service struct {
	Orchestrator *alert.Orchestrator
	broadcaster  *broadcast.Broadcaster
	bus          *eventbus.Bus[any]
	source       *mqtt.PositionSource
	transport    *ws.Transport
	sink         coremetrics.MetricsSink
	cfg          *config.Config
	log          logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var alerts repository.AlertRepository
	var subjects repository.SubjectRepository
	var view geo.SubjectView
	if cfg.Redis.Enabled {
		client, err := storage.NewClient(ctx, cfg.Redis.ToStorage())
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		store := storage.NewRedisStore(client, cfg.Redis.ToStorage())
		alerts = store
		subjects = store
		view = subjectViewFunc(store.GetSubject)
	} else {
		store := repository.NewMemoryStore()
		alerts = store
		subjects = store
		view = store
	}
	alerts = repository.NewRetryingAlertRepository(alerts, 0, 0, logger.New("alert-store"))

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	senders := map[model.Channel]dispatch.ChannelSender{
		model.ChannelPush: push.New(cfg.Push),
		model.ChannelSMS:  sms.New(cfg.SMS),
	}
	bus := eventbus.New[any]()
	broadcaster := broadcast.New(cfg.Broadcast.QueueSize, logger.New("broadcast"))
	senders[model.ChannelSocket] = newSocketSender(broadcaster)

	dispatcher, err := dispatch.NewDispatcher(senders, cfg.Dispatch.Policy(), cfg.Dispatch.ToCore(), logger.New("dispatch"))
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	var geocoder geocode.Provider
	if cfg.Geocode.Enabled {
		geocoder = infrageocode.NewGoogleProvider(cfg.Geocode.ToProvider())
	}

	index := geo.NewIndex(view, cfg.Alert.CellDegrees)
	orch, err := alert.New(cfg.Alert.ToCore(), index, dispatcher, broadcaster,
		alerts, subjects, geocoder, bus, logger.New("orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	source, err := mqtt.NewPositionSource(cfg.MQTT, orch)
	if err != nil {
		return nil, fmt.Errorf("mqtt position source: %w", err)
	}

	return &Service{
		Orchestrator: orch,
		broadcaster:  broadcaster,
		bus:          bus,
		source:       source,
		transport:    ws.NewTransport(cfg.WebSocket, broadcaster, orch),
		sink:         sink,
		cfg:          cfg,
		log:          logg,
	}, nil
}

// Run starts the transports and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	mux := http.NewServeMux()
	mux.Handle("/ws", s.transport)
	srv := &http.Server{Addr: s.cfg.HTTP.ListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		s.log.Infof("websocket endpoint on %s", s.cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("http server: %v", err)
		}
	}()
	if s.cfg.HTTP.PrometheusAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.HTTP.PrometheusAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.source.Disconnect()
	s.Orchestrator.Close()
	s.broadcaster.Close()
	s.bus.Close()
	return nil
}

// subjectViewFunc adapts a context-free lookup over the subject store for
// the geo index's caregiver filter.
type subjectViewFunc func(ctx context.Context, id string) (model.Subject, error)

func (f subjectViewFunc) Subject(id string) (model.Subject, bool) {
	s, err := f(context.Background(), id)
	if err != nil {
		return model.Subject{}, false
	}
	return s, true
}
