package api

import (
	"net/http"
	"sync"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/webserver"
	"github.com/labstack/echo/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

func registerValidateRoutes() {
	webserver.ApiPOST("/whatsapp/validate-number", postValidateNumbers)
}

const (
	validateWorkers   = 4
	validateChunkSize = 20
)

type validatePayload struct {
	DeviceName string   `json:"deviceName" validate:"required"`
	Numbers    []string `json:"numbers" validate:"required,min=1"`
}

type validationResult struct {
	IsValid bool   `json:"isValid"`
	Error   string `json:"error,omitempty"`
}

// postValidateNumbers checks which submitted numbers are reachable on
// WhatsApp. Results keep the order of the request; one bad number never
// fails the batch.
func postValidateNumbers(c echo.Context) error {
	var payload validatePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "deviceName and numbers are required", err.Error())
	}

	appCtx := GetAppContext(c)
	transport, err := appCtx.DeviceRegistry().Transport(payload.DeviceName)
	if err != nil {
		if _, notConn := err.(*domain.DeviceNotConnectedError); notConn {
			return fail(c, http.StatusConflict, "DEVICE_NOT_CONNECTED", "Device is not connected", err.Error())
		}
		return fail(c, http.StatusInternalServerError, "VALIDATE_FAILED", "Failed to resolve device", err.Error())
	}

	results := make([]validationResult, len(payload.Numbers))

	// normalize first, only clean numbers go to the provider lookup
	type lookup struct {
		index      int
		normalized string
	}
	var lookups []lookup
	norm := appCtx.Normalizer()
	for i, raw := range payload.Numbers {
		n, err := norm.Normalize(raw)
		if err != nil {
			results[i] = validationResult{IsValid: false, Error: err.Error()}
			continue
		}
		lookups = append(lookups, lookup{index: i, normalized: n})
	}

	if len(lookups) > 0 {
		pool, perr := ants.NewPool(validateWorkers)
		if perr != nil {
			return fail(c, http.StatusInternalServerError, "VALIDATE_FAILED", "Failed to start validation pool", perr.Error())
		}
		defer pool.Release()

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		ctx := c.Request().Context()
		for start := 0; start < len(lookups); start += validateChunkSize {
			end := start + validateChunkSize
			if end > len(lookups) {
				end = len(lookups)
			}
			chunk := lookups[start:end]

			wg.Add(1)
			serr := pool.Submit(func() {
				defer wg.Done()
				numbers := make([]string, len(chunk))
				for i, l := range chunk {
					numbers[i] = l.normalized
				}
				found, err := transport.CheckNumbers(ctx, numbers)
				mu.Lock()
				defer mu.Unlock()
				for _, l := range chunk {
					if err != nil {
						results[l.index] = validationResult{IsValid: false, Error: "lookup failed"}
						continue
					}
					if found[l.normalized] {
						results[l.index] = validationResult{IsValid: true}
					} else {
						results[l.index] = validationResult{IsValid: false, Error: "number is not registered on WhatsApp"}
					}
				}
			})
			if serr != nil {
				wg.Done()
				zap.L().Warn("api: validate submit failed", zap.Error(serr))
				mu.Lock()
				for _, l := range chunk {
					results[l.index] = validationResult{IsValid: false, Error: "lookup failed"}
				}
				mu.Unlock()
			}
		}
		wg.Wait()
	}

	return ok(c, map[string]interface{}{"validationResults": results})
}
