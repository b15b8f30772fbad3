package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/exam-go-api/internal/dto"
	"github.com/noah-isme/exam-go-api/internal/observability"
)

var (
	// ErrRecordingTooLarge indicates the video exceeded the configured limit.
	ErrRecordingTooLarge = errors.New("recording exceeds maximum allowed size")
	// ErrRecordingTypeNotAllowed indicates the payload is not a video.
	ErrRecordingTypeNotAllowed = errors.New("recording must be a video file")
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// RecordingService validates and stores proctoring videos, returning the
// hosted URL that gets attached to an exam.
type RecordingService interface {
	Upload(ctx context.Context, examID uint, file *multipart.FileHeader) (dto.RecordingUploadResponse, error)
}

type recordingService struct {
	storage FileStorage
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewRecordingService constructs a recording service.
func NewRecordingService(storage FileStorage, maxSizeMB int, logger zerolog.Logger) RecordingService {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	return &recordingService{
		storage: storage,
		logger:  logger.With().Str("component", "recording_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/exam-go-api/internal/service/recording"),
	}
}

func (s *recordingService) Upload(ctx context.Context, examID uint, file *multipart.FileHeader) (dto.RecordingUploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "recording.store")
	defer span.End()

	span.SetAttributes(
		attribute.Int("recording.exam_id", int(examID)),
		attribute.Int64("recording.max_bytes", s.maxSize),
	)

	start := time.Now()
	defer func() {
		observability.RecordingLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		err := errors.New("recording file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.RecordingUploadResponse{}, err
	}
	span.SetAttributes(attribute.Int64("recording.request_size", file.Size))

	if file.Size > s.maxSize {
		observability.RecordingRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrRecordingTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.RecordingUploadResponse{}, ErrRecordingTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.RecordingUploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.RecordingUploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.RecordingRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrRecordingTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return dto.RecordingUploadResponse{}, ErrRecordingTooLarge
	}

	// Content sniffing, the client-declared type is not trusted.
	mime := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("recording.detected_mime", mime.String()))
	if !strings.HasPrefix(mime.String(), "video/") {
		observability.RecordingRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrRecordingTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return dto.RecordingUploadResponse{}, ErrRecordingTypeNotAllowed
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := recordingName(examID, file.Filename)

	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.RecordingRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.RecordingUploadResponse{}, err
	}

	observability.RecordingUploads().WithLabelValues(mime.String()).Inc()
	span.SetStatus(codes.Ok, "stored")

	s.logger.Info().
		Uint("exam_id", examID).
		Str("mime", mime.String()).
		Int("size_bytes", buf.Len()).
		Msg("recording stored")

	return dto.RecordingUploadResponse{
		URL:       url,
		SizeBytes: int64(buf.Len()),
		MimeType:  mime.String(),
		Checksum:  hex.EncodeToString(checksum[:]),
	}, nil
}

func recordingName(examID uint, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".webm"
	}
	return fmt.Sprintf("exam-%d-%d%s", examID, time.Now().Unix(), ext)
}
