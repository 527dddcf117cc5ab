package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindcare/guardian/app"
	"github.com/mindcare/guardian/config"
	"github.com/mindcare/guardian/core/model"
	"github.com/mindcare/guardian/infra/logger"
)

var (
	triggerPatientID string
	triggerLat       float64
	triggerLon       float64
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Inject a test panic event",
	RunE:  triggerAlert,
}

func init() {
	triggerCmd.Flags().StringVar(&triggerPatientID, "patient", "test-patient", "patient identifier")
	triggerCmd.Flags().Float64Var(&triggerLat, "lat", 37.7749, "panic latitude")
	triggerCmd.Flags().Float64Var(&triggerLon, "lon", -122.4194, "panic longitude")
	rootCmd.AddCommand(triggerCmd)
}

func triggerAlert(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New("trigger-command")
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logg.Errorf("service close: %v", err)
		}
	}()

	al, err := svc.Orchestrator.Trigger(ctx, triggerPatientID, model.Position{
		Latitude:       triggerLat,
		Longitude:      triggerLon,
		AccuracyMeters: 10,
		CapturedAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("trigger alert: %w", err)
	}
	logg.Infof("alert %s created for patient %s, waiting for resolution (ctrl-c to stop)", al.ID, triggerPatientID)

	<-ctx.Done()
	return nil
}
