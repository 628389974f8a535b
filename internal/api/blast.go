package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/araddon/dateparse"
	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/importer"
	"github.com/bjo163/wablast/internal/scheduler"
	"github.com/bjo163/wablast/internal/webserver"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func registerBlastRoutes() {
	webserver.ApiPOST("/whatsapp/blast-excel", postBlastExcel)
	webserver.ApiPOST("/whatsapp/blast-file", postBlastFile)
	// older dashboard builds post the sheet itself here with snake_case fields
	webserver.ApiPOST("/blast-excel", postLegacyBlastExcel)
}

type blastContact struct {
	Number            string `json:"number"`
	RecipientName     string `json:"recipientName"`
	AdditionalMessage string `json:"additionalMessage"`
	ExtraMessage      string `json:"extraMessage"`
	Message           string `json:"message"`
}

type blastPayload struct {
	Contacts        []blastContact `json:"contacts" validate:"required,min=1"`
	ScheduledTime   string         `json:"scheduledTime"`
	IntervalSeconds int            `json:"intervalSeconds"`
	TemplateName    string         `json:"templateName"`
	DeviceName      string         `json:"deviceName" validate:"required"`
	ImageID         string         `json:"imageId"`
}

type failedMessage struct {
	Number string `json:"number"`
	Reason string `json:"reason"`
}

// postBlastExcel schedules a batch submitted by the dashboard as JSON. The
// endpoint keeps its historical name, the sheet itself was parsed
// client-side.
func postBlastExcel(c echo.Context) error {
	var payload blastPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "deviceName and contacts are required", err.Error())
	}

	contacts := make([]domain.Contact, len(payload.Contacts))
	overrides := make([]string, len(payload.Contacts))
	for i, ct := range payload.Contacts {
		contacts[i] = domain.Contact{
			Number:            ct.Number,
			RecipientName:     ct.RecipientName,
			AdditionalMessage: ct.AdditionalMessage,
			ExtraMessage:      ct.ExtraMessage,
		}
		overrides[i] = ct.Message
	}

	return scheduleBlast(c, payload.DeviceName, contacts, overrides,
		payload.ScheduledTime, payload.IntervalSeconds, payload.TemplateName, payload.ImageID)
}

// postBlastFile parses an uploaded .xlsx or .csv server-side and schedules
// it in one call. Multipart fields mirror the JSON payload.
func postBlastFile(c echo.Context) error {
	deviceName := c.FormValue("deviceName")
	if deviceName == "" {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "deviceName is required", nil)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FILE", "contact file is required", err.Error())
	}
	src, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "Unable to open uploaded file", err.Error())
	}
	defer src.Close()

	contacts, err := importer.ParseContacts(fh.Filename, src)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "Unable to parse contact file", err.Error())
	}
	if len(contacts) == 0 {
		return fail(c, http.StatusBadRequest, "EMPTY_FILE", "No contacts found in file", nil)
	}

	interval := 0
	if v := c.FormValue("intervalSeconds"); v != "" {
		fmt.Sscan(v, &interval)
	}

	return scheduleBlast(c, deviceName, contacts, nil,
		c.FormValue("scheduledTime"), interval, c.FormValue("templateName"), c.FormValue("imageId"))
}

// postLegacyBlastExcel serves the original blast form: multipart field
// "excelFile", a bare HH:MM scheduled_time, interval_seconds and
// message_template_name, no device name. The sender falls back to the
// first connected device.
func postLegacyBlastExcel(c echo.Context) error {
	fh, err := c.FormFile("excelFile")
	if err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FILE", "excelFile is required", err.Error())
	}
	src, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "Unable to open uploaded file", err.Error())
	}
	defer src.Close()

	contacts, err := importer.ParseContacts(fh.Filename, src)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "Unable to parse contact file", err.Error())
	}
	if len(contacts) == 0 {
		return fail(c, http.StatusBadRequest, "EMPTY_FILE", "No contacts found in file", nil)
	}

	interval := 0
	if v := c.FormValue("interval_seconds"); v != "" {
		fmt.Sscan(v, &interval)
	}

	// the form submits a bare wall clock; anchor it to today and let the
	// scheduler roll a passed time to tomorrow
	scheduledTime := c.FormValue("scheduled_time")
	if wall, terr := time.Parse("15:04", scheduledTime); terr == nil {
		now := time.Now()
		scheduledTime = time.Date(now.Year(), now.Month(), now.Day(),
			wall.Hour(), wall.Minute(), 0, 0, now.Location()).Format(time.RFC3339)
	}

	appCtx := GetAppContext(c)
	deviceName := c.FormValue("deviceName")
	if deviceName == "" {
		name, ok := appCtx.DeviceRegistry().FirstConnected()
		if !ok {
			return fail(c, http.StatusConflict, "DEVICE_NOT_CONNECTED", "No connected device available", nil)
		}
		deviceName = name
	}

	return scheduleBlast(c, deviceName, contacts, nil,
		scheduledTime, interval, c.FormValue("message_template_name"), c.FormValue("imageId"))
}

func scheduleBlast(c echo.Context, deviceName string, contacts []domain.Contact, overrides []string,
	scheduledTime string, intervalSeconds int, templateName, imageID string) error {

	appCtx := GetAppContext(c)
	db := appCtx.DB()

	accepted, rejected := appCtx.Normalizer().NormalizeBatch(contacts)
	failed := make([]failedMessage, 0, len(rejected))
	for _, rej := range rejected {
		failed = append(failed, failedMessage{Number: rej.Number, Reason: rej.Reason})
	}

	// body overrides follow their contact through normalization by index
	acceptedOverrides := make([]string, 0, len(accepted))
	if overrides != nil {
		rejectedIdx := make(map[int]bool, len(rejected))
		for _, rej := range rejected {
			rejectedIdx[rej.Index] = true
		}
		for i := range contacts {
			if !rejectedIdx[i] {
				acceptedOverrides = append(acceptedOverrides, overrides[i])
			}
		}
	}

	if len(accepted) == 0 {
		return fail(c, http.StatusBadRequest, "NO_VALID_CONTACTS", "No valid contacts to schedule", failed)
	}

	var templateContent string
	if templateName != "" {
		var tpl domain.WaTemplate
		if err := db.Where("name = ?", templateName).First(&tpl).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fail(c, http.StatusNotFound, "TEMPLATE_NOT_FOUND", "Template not found", nil)
			}
			return fail(c, http.StatusInternalServerError, "TEMPLATE_LOOKUP_FAILED", "Failed to load template", err.Error())
		}
		templateContent = tpl.Content
	}

	var mediaPath string
	if imageID != "" {
		var img domain.WaImage
		if err := db.Where("id = ?", imageID).First(&img).Error; err != nil {
			return fail(c, http.StatusBadRequest, "IMAGE_NOT_FOUND", "Image not found", nil)
		}
		mediaPath = filepath.Join(appCtx.Config().GetImageDir(), img.StoredName)
	}

	var startAt time.Time
	if scheduledTime != "" {
		parsed, err := dateparse.ParseAny(scheduledTime)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_TIME", "Unable to parse scheduledTime", err.Error())
		}
		startAt = parsed
	}

	if intervalSeconds <= 0 {
		intervalSeconds = int(appCtx.GetSettingsInt64Value("whatsapp", "DefaultIntervalSeconds"))
	}
	if intervalSeconds <= 0 {
		intervalSeconds = appCtx.Config().Whatsapp.DefaultInterval
	}
	if intervalSeconds <= 0 {
		intervalSeconds = 10
	}

	jobs := make([]scheduler.BatchJob, 0, len(accepted))
	for i, ct := range accepted {
		body := ""
		if len(acceptedOverrides) == len(accepted) && acceptedOverrides[i] != "" {
			body = acceptedOverrides[i]
		} else {
			body = scheduler.Render(templateContent, ct)
		}
		if body == "" && mediaPath == "" {
			failed = append(failed, failedMessage{Number: ct.Number, Reason: "empty message body"})
			continue
		}
		jobs = append(jobs, scheduler.BatchJob{
			ToNumber:      ct.Number,
			RecipientName: ct.RecipientName,
			Body:          body,
		})
	}

	if len(jobs) == 0 {
		return fail(c, http.StatusBadRequest, "NO_VALID_CONTACTS", "No valid contacts to schedule", failed)
	}

	msgs, err := appCtx.Dispatcher().ScheduleBatch(c.Request().Context(), scheduler.BatchRequest{
		DeviceName:   deviceName,
		Jobs:         jobs,
		StartAt:      startAt,
		Interval:     time.Duration(intervalSeconds) * time.Second,
		TemplateName: templateName,
		ImageID:      imageID,
		MediaPath:    mediaPath,
	})
	if err != nil {
		if _, notConn := err.(*domain.DeviceNotConnectedError); notConn {
			return fail(c, http.StatusConflict, "DEVICE_NOT_CONNECTED", "Device is not connected", err.Error())
		}
		zap.L().Error("api: schedule batch failed", zap.String("device", deviceName), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "SCHEDULE_FAILED", "Failed to schedule batch", err.Error())
	}

	resp := map[string]interface{}{
		"message": fmt.Sprintf("%d pesan berhasil dijadwalkan", len(msgs)),
	}
	if len(failed) > 0 {
		resp["warning"] = fmt.Sprintf("%d kontak dilewati", len(failed))
		resp["failedMessages"] = failed
	}
	zap.L().Info("api: blast scheduled",
		zap.String("device", deviceName),
		zap.Int("scheduled", len(msgs)),
		zap.Int("skipped", len(failed)))
	return ok(c, resp)
}
