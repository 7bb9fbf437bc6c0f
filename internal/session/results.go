package session

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/comfybridge/internal/imaging"
)

var errNotImage = errors.New("payload is not a PNG or JPEG image")

// sniffImage returns the file extension for PNG or JPEG data.
func sniffImage(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !mt.Is("image/png") && !mt.Is("image/jpeg") {
		return "", fmt.Errorf("%w: detected %s", errNotImage, mt.String())
	}
	return mt.Extension(), nil
}

// persistResultLocked writes the first returned image to the result path.
// Failures are logged; the job still completes.
func (m *Machine) persistResultLocked(images []string) string {
	if len(images) == 0 {
		m.logger.Warn("success without images", zap.String("job_id", m.job.ID))
		return ""
	}
	if m.resultPath == "" {
		return ""
	}

	data, err := base64.StdEncoding.DecodeString(images[0])
	if err == nil {
		_, err = sniffImage(data)
	}
	if err == nil {
		err = imaging.WriteFile(m.resultPath, data)
	}
	if err != nil {
		m.logger.Warn("result not saved", zap.String("job_id", m.job.ID), zap.Error(err))
		return ""
	}
	return m.resultPath
}

// persistPreviewLocked writes a preview frame when the rate allows.
func (m *Machine) persistPreviewLocked(frame []byte) {
	if m.previewPath == "" {
		return
	}
	if !m.previews.Allow() {
		m.metrics.RecordPreviewFrame("throttled")
		return
	}
	ext, err := sniffImage(frame)
	if err == nil {
		err = imaging.WriteFile(m.previewPath+ext, frame)
	}
	if err != nil {
		m.metrics.RecordPreviewFrame("failed")
		m.logger.Debug("preview not saved", zap.Error(err))
		return
	}
	m.metrics.RecordPreviewFrame("saved")
}
