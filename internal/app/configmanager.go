package app

import (
	"errors"
	"time"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfigManager reads runtime settings from the sys_config table, so
// operators can tune the engine without restarting it.
type ConfigManager struct {
	app *Application
}

func NewConfigManager(app *Application) *ConfigManager {
	return &ConfigManager{app: app}
}

func (cm *ConfigManager) value(category, name string) (string, bool) {
	var cfg domain.SysConfig
	err := cm.app.gormDB.Where("type = ? and name = ?", category, name).First(&cfg).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Warn("configmanager: query failed",
				zap.String("category", category), zap.String("name", name), zap.Error(err))
		}
		return "", false
	}
	return cfg.Value, true
}

func (cm *ConfigManager) GetString(category, name string) string {
	v, _ := cm.value(category, name)
	return v
}

func (cm *ConfigManager) GetInt(category, name string) int {
	v, ok := cm.value(category, name)
	if !ok {
		return 0
	}
	return cast.ToInt(v)
}

func (cm *ConfigManager) GetInt64(category, name string) int64 {
	v, ok := cm.value(category, name)
	if !ok {
		return 0
	}
	return cast.ToInt64(v)
}

func (cm *ConfigManager) GetBool(category, name string) bool {
	v, ok := cm.value(category, name)
	if !ok {
		return false
	}
	return cast.ToBool(v)
}

// SetValue writes or updates one setting row.
func (cm *ConfigManager) SetValue(category, name, value string) error {
	var count int64
	cm.app.gormDB.Model(&domain.SysConfig{}).
		Where("type = ? and name = ?", category, name).Count(&count)
	if count == 0 {
		return cm.app.gormDB.Create(&domain.SysConfig{
			Type:  category,
			Name:  name,
			Value: value,
		}).Error
	}
	return cm.app.gormDB.Model(&domain.SysConfig{}).
		Where("type = ? and name = ?", category, name).
		Updates(map[string]interface{}{"value": value, "updated_at": time.Now()}).Error
}
