package cron

import (
	"context"
	"sync"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/customeros/mailnotify/interfaces"
	cron_config "github.com/customeros/mailnotify/internal/cron/config"
	"github.com/customeros/mailnotify/internal/logger"
	"github.com/customeros/mailnotify/internal/tracing"
)

const JobHeartbeat = "heartbeat"

type CronManager struct {
	cfg      *cron_config.Config
	log      logger.Logger
	podName  string
	notifier interfaces.NotifierService

	mu     sync.Mutex
	cron   *cronv3.Cron
	stopCh chan struct{}
	jobIDs map[string]cronv3.EntryID
}

func NewCronManager(cfg *cron_config.Config, log logger.Logger, podName string, notifier interfaces.NotifierService) *CronManager {
	if podName == "" {
		podName = "local"
	}
	return &CronManager{
		cfg:      cfg,
		log:      log,
		podName:  podName,
		notifier: notifier,
		stopCh:   make(chan struct{}),
		jobIDs:   make(map[string]cronv3.EntryID),
	}
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	if cm.cfg.CronScheduleHeartbeat == "" {
		return nil
	}

	id, err := c.AddFunc(cm.cfg.CronScheduleHeartbeat, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		cm.heartbeat()
	})
	if err != nil {
		return err
	}
	cm.jobIDs[JobHeartbeat] = id
	cm.log.Infof("Registered heartbeat job with schedule: %s", cm.cfg.CronScheduleHeartbeat)
	return nil
}

// Start initializes and starts the cron scheduler
func (cm *CronManager) Start() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.cron != nil {
		return nil
	}

	cm.log.Info("Starting cron manager")
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
		cm.cron = nil
	}

	select {
	case <-cm.stopCh:
	default:
		close(cm.stopCh)
	}
}

func (cm *CronManager) heartbeat() {
	span, _ := tracing.StartTracerSpan(context.Background(), "CronManager.heartbeat")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	if cm.notifier == nil {
		cm.log.Infof("Cron heartbeat from pod: %s", cm.podName)
		return
	}

	status := cm.notifier.Status()
	tracing.LogObjectAsJson(span, "status", status)
	cm.log.Infow("Cron heartbeat",
		"pod", cm.podName,
		"mailbox", status.Mailbox,
		"loopState", status.LoopState,
		"connectionState", status.ConnectionState,
		"consecutiveFailures", status.ConsecutiveFailures,
		"lastUid", status.LastUID,
		"delivered", status.Delivered,
		"deliveryFailures", status.DeliveryFailures)
}
