package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bjo163/wablast/internal/domain"
	"github.com/bjo163/wablast/internal/webserver"
	"github.com/bjo163/wablast/pkg/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func registerImageRoutes() {
	webserver.ApiGET("/images", listImages)
	webserver.ApiPOST("/images/upload", postUploadImage)
	webserver.ApiDELETE("/images/:id", deleteImage)
}

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func listImages(c echo.Context) error {
	var imgs []domain.WaImage
	if err := GetDB(c).Order("created_at desc").Find(&imgs).Error; err != nil {
		zap.L().Warn("api: list images failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list images", err.Error())
	}
	return ok(c, imgs)
}

// postUploadImage stores the multipart "image" field under the workdir
// image directory and returns the generated id.
func postUploadImage(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return fail(c, http.StatusBadRequest, "MISSING_FILE", "image file is required", err.Error())
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExts[ext] {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "unsupported image type", nil)
	}

	src, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_FILE", "Unable to open uploaded file", err.Error())
	}
	defer src.Close()

	id := common.UUID()
	storedName := id + ext
	destPath := filepath.Join(GetAppContext(c).Config().GetImageDir(), storedName)

	dst, err := os.Create(destPath)
	if err != nil {
		zap.L().Error("api: create image file failed", zap.String("path", destPath), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store image", err.Error())
	}
	defer dst.Close()
	size, err := io.Copy(dst, src)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store image", err.Error())
	}

	img := domain.WaImage{
		ID:           id,
		OriginalName: fh.Filename,
		StoredName:   storedName,
		Url:          "/uploads/" + storedName,
		ContentType:  fh.Header.Get("Content-Type"),
		Size:         size,
	}
	if err := GetDB(c).Create(&img).Error; err != nil {
		_ = os.Remove(destPath)
		zap.L().Warn("api: create image row failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store image", err.Error())
	}

	zap.L().Info("api: image uploaded", zap.String("id", id), zap.String("name", fh.Filename))
	return ok(c, map[string]interface{}{"imageId": id, "url": img.Url})
}

func deleteImage(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid image id", nil)
	}

	db := GetDB(c)
	var img domain.WaImage
	if err := db.Where("id = ?", id).First(&img).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Image not found", nil)
	}

	if err := db.Delete(&domain.WaImage{}, "id = ?", id).Error; err != nil {
		zap.L().Warn("api: delete image row failed", zap.String("id", id), zap.Error(err))
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete image", err.Error())
	}

	path := filepath.Join(GetAppContext(c).Config().GetImageDir(), img.StoredName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("api: delete image file failed", zap.String("path", path), zap.Error(err))
	}
	return ok(c, map[string]interface{}{"message": "Gambar dihapus"})
}
