package domain

import "time"

// WaTemplate is a reusable message body with named placeholders
// ({nama}, {pesan} ...). Names are unique; deletion is by name.
type WaTemplate struct {
	ID        int64     `json:"id,string" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WaTemplate) TableName() string {
	return "wa_template"
}
