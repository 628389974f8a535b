package app

import (
	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/pkg/common"
	"go.uber.org/zap"
)

type settingDef struct {
	Category    string
	Name        string
	Default     string
	Description string
}

var defaultSettings = []settingDef{
	{"whatsapp", "CountryPrefix", "62", "Country prefix applied when normalizing phone numbers"},
	{"whatsapp", "DefaultIntervalSeconds", "10", "Fallback spacing between blast messages"},
	{"whatsapp", "HistoryDays", "90", "Days of message history kept before the daily purge"},
	{"whatsapp", "InboxHistoryDays", "90", "Days of inbox history kept before the daily purge"},
}

func (a *Application) checkSettings() {
	for sortid, s := range defaultSettings {
		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", s.Category, s.Name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     0,
				Sort:   sortid,
				Type:   s.Category,
				Name:   s.Name,
				Value:  s.Default,
				Remark: s.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", s.Category+"."+s.Name),
				zap.String("default", s.Default))
		}
	}
}

// checkTemplates seeds a starter template so a fresh install can send a
// blast without creating one first.
func (a *Application) checkTemplates() {
	defaultTemplates := []domain.WaTemplate{
		{
			Name:    "sapaan",
			Content: "Halo {nama}, terima kasih sudah menjadi pelanggan kami. {pesan_tambahan}",
		},
	}

	for _, tpl := range defaultTemplates {
		var count int64
		a.gormDB.Model(&domain.WaTemplate{}).Where("name = ?", tpl.Name).Count(&count)
		if count == 0 {
			tpl.ID = common.UUIDint64()
			if err := a.gormDB.Create(&tpl).Error; err != nil {
				zap.L().Error("failed to create default template",
					zap.String("name", tpl.Name), zap.Error(err))
			} else {
				zap.L().Info("initialized default template", zap.String("name", tpl.Name))
			}
		}
	}
}
