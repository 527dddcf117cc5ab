package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/mindcare/guardian/core/metrics"
	"github.com/mindcare/guardian/infra/logger"
)

// InfluxSink writes alert lifecycle events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAlertTransition writes the transition as a line protocol event.
func (s *InfluxSink) RecordAlertTransition(ev coremetrics.AlertTransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("alert_transition").
		AddTag("alert_id", ev.AlertID).
		AddTag("status", string(ev.Status)).
		AddTag("component", "orchestrator")
	if ev.PatientID != "" {
		p = p.AddTag("patient_id", ev.PatientID)
	}
	p = p.AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordNotification records one notification state change.
func (s *InfluxSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("notification_event").
		AddTag("alert_id", ev.AlertID).
		AddTag("recipient_id", ev.RecipientID).
		AddTag("channel", string(ev.Channel)).
		AddTag("state", string(ev.State)).
		AddTag("component", "dispatcher").
		AddField("attempts", ev.Attempts).
		AddField("errors", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCandidateSet persists the outcome of one ranking pass.
func (s *InfluxSink) RecordCandidateSet(ev coremetrics.CandidateSetEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("candidate_set").
		AddTag("alert_id", ev.AlertID).
		AddTag("component", "ranker").
		AddField("assigned", ev.Assigned).
		AddField("nearby", ev.Nearby).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPosition writes an accepted position update.
func (s *InfluxSink) RecordPosition(ev coremetrics.PositionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("position_update").
		AddTag("subject_id", ev.SubjectID).
		AddTag("component", "geo_index").
		AddField("latitude", round6(ev.Position.Latitude)).
		AddField("longitude", round6(ev.Position.Longitude)).
		AddField("accuracy_m", round3(ev.Position.AccuracyMeters)).
		AddField("captured_at", strconv.FormatInt(ev.Position.CapturedAt.UnixNano(), 10)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
