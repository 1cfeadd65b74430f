package hubservice

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/models"
	"github.com/sauqing9/api-sitras/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// SaveManual stores a manual submission. File payloads go to the attachment store
// when one is configured, otherwise they are kept inline.
func (s *HubService) SaveManual(ctx context.Context, in *models.ManualInput) (*models.ManualData, error) {
	md, err := in.ToManualData()
	if err != nil {
		return nil, err
	}
	repository.Stamp(&md.Record, repository.PrefixManual, s.now())

	if md.Type == models.ManualTypeFile && s.Attachments != nil {
		if err := s.storeAttachment(ctx, md); err != nil {
			return nil, err
		}
	}

	if err := s.Store.Manual().Insert(ctx, md); err != nil {
		if md.Attachment != nil {
			if delErr := s.Attachments.Delete(context.WithoutCancel(ctx), md.Attachment.Key); delErr != nil {
				nuts.L.Warnf("[ManualService] Failed to remove orphaned attachment %s: %v", md.Attachment.Key, delErr)
			}
		}
		return nil, err
	}
	nuts.L.Infof("[ManualService] Stored manual %s submission %s", md.Type, md.ID)
	return md, nil
}

// LatestManualExtracted returns the most recent submission carrying extracted values
func (s *HubService) LatestManualExtracted(ctx context.Context) (*models.ManualData, error) {
	md, err := s.Store.Manual().LatestWithExtracted(ctx)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError("No manual data found with extracted values", err)
		}
		return nil, err
	}
	return md, nil
}

// OpenManualAttachment streams the stored payload of a file submission
func (s *HubService) OpenManualAttachment(ctx context.Context, id string) (io.ReadCloser, *models.ManualData, error) {
	md, err := s.Store.Manual().Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if md.Attachment == nil || s.Attachments == nil {
		return nil, nil, errors.NewNotFoundError("manual data has no attachment", nil)
	}
	rc, err := s.Attachments.Open(ctx, md.Attachment.Key)
	if err != nil {
		return nil, nil, err
	}
	return rc, md, nil
}

func (s *HubService) storeAttachment(ctx context.Context, md *models.ManualData) error {
	payload, declared, err := decodePayload(md.Content)
	if err != nil {
		return errors.NewValidationError("file content must be base64 or a data URL", err)
	}
	if s.options.MaxFileSize > 0 && int64(len(payload)) > s.options.MaxFileSize {
		return errors.NewValidationError(
			fmt.Sprintf("file exceeds the maximum size of %d bytes", s.options.MaxFileSize), nil)
	}

	mimeType := resolveMimeType(declared, md.FileType, payload)
	if !s.mimeAllowed(mimeType) {
		return errors.NewValidationError(fmt.Sprintf("file type %q is not allowed", mimeType), nil)
	}

	name := sanitizeFileName(md.FileName)
	key := "manual/" + md.ID + "/" + name
	if err := s.Attachments.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), mimeType); err != nil {
		return err
	}

	md.Attachment = &models.Attachment{Key: key, Size: int64(len(payload)), MimeType: mimeType}
	md.Content = ""
	if md.FileName == "" {
		md.FileName = name
	}
	if md.FileType == "" {
		md.FileType = mimeType
	}
	return nil
}

func (s *HubService) mimeAllowed(mimeType string) bool {
	if len(s.options.AllowedMimeTypes) == 0 {
		return true
	}
	for _, allowed := range s.options.AllowedMimeTypes {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}

// decodePayload accepts "data:<mime>;base64,<data>" or bare base64
func decodePayload(content string) ([]byte, string, error) {
	content = strings.TrimSpace(content)
	var declared string
	if strings.HasPrefix(content, "data:") {
		header, data, ok := strings.Cut(content[len("data:"):], ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("unsupported data URL")
		}
		declared = strings.TrimSuffix(header, ";base64")
		content = data
	}
	payload, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		payload, err = base64.RawStdEncoding.DecodeString(content)
	}
	if err != nil {
		return nil, "", err
	}
	return payload, declared, nil
}

// resolveMimeType prefers the data URL header, then the declared file type, then sniffing
func resolveMimeType(dataURL, fileType string, payload []byte) string {
	for _, candidate := range []string{dataURL, fileType} {
		if candidate == "" {
			continue
		}
		if mt, _, err := mime.ParseMediaType(candidate); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(payload))
	return mt
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}
