package cron_config

type Config struct {
	// Heartbeat with loop status, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
}
