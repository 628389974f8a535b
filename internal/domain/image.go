package domain

import "time"

// WaImage is an uploaded media file in the image library. The file itself
// lives under the workdir image directory as StoredName; Url is the public
// path served by the webserver.
type WaImage struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	OriginalName string    `json:"originalName"`
	StoredName   string    `json:"-"`
	Url          string    `json:"url"`
	ContentType  string    `json:"-"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

func (WaImage) TableName() string {
	return "wa_image"
}
