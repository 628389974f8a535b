package app

import (
	"github.com/bjo163/wablast/config"
	"github.com/bjo163/wablast/internal/devices"
	"github.com/bjo163/wablast/internal/events"
	"github.com/bjo163/wablast/internal/normalizer"
	"github.com/bjo163/wablast/internal/scheduler"
	"github.com/bjo163/wablast/internal/tracker"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SettingsProvider provides system settings access
type SettingsProvider interface {
	GetSettingsStringValue(category, key string) string
	GetSettingsInt64Value(category, key string) int64
	GetSettingsBoolValue(category, key string) bool
}

// SchedulerProvider provides cron scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// ConfigManagerProvider provides configuration manager access
type ConfigManagerProvider interface {
	ConfigMgr() *ConfigManager
}

// EngineProvider exposes the WhatsApp engine services
type EngineProvider interface {
	DeviceRegistry() *devices.Registry
	Dispatcher() *scheduler.Service
	Tracker() *tracker.Tracker
	Normalizer() *normalizer.Normalizer
	EventBus() *events.Bus
	Hub() *events.Hub
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SettingsProvider
	SchedulerProvider
	ConfigManagerProvider
	EngineProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}
