package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	names []string
	data  [][]byte
	err   error
}

func (f *fakeStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.names = append(f.names, name)
	f.data = append(f.data, content)
	return "https://cdn.example.com/" + name, nil
}

// webmPayload builds a minimal EBML header that content sniffing recognises
// as video/webm, padded out to the requested size.
func webmPayload(size int) []byte {
	header := []byte{0x1A, 0x45, 0xDF, 0xA3, 0x42, 0x82, 0x84, 'w', 'e', 'b', 'm'}
	if size <= len(header) {
		return header
	}
	return append(header, make([]byte, size-len(header))...)
}

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("recording", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&buf, writer.Boundary()).ReadForm(int64(len(content)) + 10240)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["recording"][0]
}

func TestRecordingUpload(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewRecordingService(storage, 1, zerolog.Nop())

	payload := webmPayload(2048)
	stored, err := svc.Upload(context.Background(), 7, fileHeader(t, "session.webm", payload))
	require.NoError(t, err)

	require.Equal(t, int64(len(payload)), stored.SizeBytes)
	require.Equal(t, "video/webm", stored.MimeType)

	checksum := sha256.Sum256(payload)
	require.Equal(t, hex.EncodeToString(checksum[:]), stored.Checksum)

	require.Len(t, storage.names, 1)
	require.True(t, strings.HasPrefix(storage.names[0], "exam-7-"))
	require.True(t, strings.HasSuffix(storage.names[0], ".webm"))
	require.Equal(t, "https://cdn.example.com/"+storage.names[0], stored.URL)
	require.Equal(t, payload, storage.data[0])
}

func TestRecordingUploadDefaultsExtension(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewRecordingService(storage, 1, zerolog.Nop())

	_, err := svc.Upload(context.Background(), 1, fileHeader(t, "recording", webmPayload(64)))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(storage.names[0], ".webm"))
}

func TestRecordingUploadRejectsNonVideo(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewRecordingService(storage, 1, zerolog.Nop())

	_, err := svc.Upload(context.Background(), 1, fileHeader(t, "notes.txt", []byte("just some text")))
	require.ErrorIs(t, err, ErrRecordingTypeNotAllowed)
	require.Empty(t, storage.names)
}

func TestRecordingUploadRejectsOversize(t *testing.T) {
	storage := &fakeStorage{}
	svc := NewRecordingService(storage, 1, zerolog.Nop())

	_, err := svc.Upload(context.Background(), 1, fileHeader(t, "big.webm", webmPayload(1024*1024+1)))
	require.ErrorIs(t, err, ErrRecordingTooLarge)
	require.Empty(t, storage.names)
}

func TestRecordingUploadSurfacesStorageError(t *testing.T) {
	storage := &fakeStorage{err: errors.New("bucket unavailable")}
	svc := NewRecordingService(storage, 1, zerolog.Nop())

	_, err := svc.Upload(context.Background(), 1, fileHeader(t, "session.webm", webmPayload(64)))
	require.Error(t, err)
}

func TestRecordingUploadRequiresFile(t *testing.T) {
	svc := NewRecordingService(&fakeStorage{}, 1, zerolog.Nop())

	_, err := svc.Upload(context.Background(), 1, nil)
	require.Error(t, err)
}
