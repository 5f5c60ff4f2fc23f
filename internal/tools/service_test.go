package tools

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chatforge/internal/blob"
	"chatforge/internal/providers"
	"chatforge/internal/storage"
)

type fakeImages struct {
	url string
	err error
}

func (f *fakeImages) Generate(context.Context, providers.ImageRequest) (providers.GeneratedImage, error) {
	if f.err != nil {
		return providers.GeneratedImage{}, f.err
	}
	return providers.GeneratedImage{URL: f.url}, nil
}

type fakeTranscriber struct {
	text     string
	language string
	err      error
	lastReq  providers.TranscribeRequest
}

func (f *fakeTranscriber) Transcribe(_ context.Context, req providers.TranscribeRequest) (providers.Transcription, error) {
	f.lastReq = req
	if f.err != nil {
		return providers.Transcription{}, f.err
	}
	return providers.Transcription{Text: f.text, Language: f.language}, nil
}

func newTestService(t *testing.T) (*Service, *storage.Store, *fakeImages, *fakeTranscriber) {
	t.Helper()
	store, err := storage.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"), true, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	bs, err := blob.NewStore(t.TempDir(), "http://localhost:8080/content")
	if err != nil {
		t.Fatalf("new blob store: %v", err)
	}

	images := &fakeImages{url: "https://img.example.com/out.png"}
	transcriber := &fakeTranscriber{text: "hello world", language: "en"}
	svc := NewService(Config{
		Store:       store,
		Blob:        bs,
		Images:      images,
		Transcriber: transcriber,
		Logger:      zerolog.Nop(),
	})
	return svc, store, images, transcriber
}

func newTestUser(t *testing.T, store *storage.Store) storage.User {
	t.Helper()
	user, err := store.UpsertUser(context.Background(), "open-1", nil, nil, nil)
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	return user
}

func TestUploadFileExtractsPlainText(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	user := newTestUser(t, store)

	res, err := svc.UploadFile(context.Background(), user.ID, UploadInput{
		Filename: "note.txt",
		Content:  base64.StdEncoding.EncodeToString([]byte("hi")),
		MimeType: "text/plain",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.ExtractedText == nil || *res.ExtractedText != "hi" {
		t.Fatalf("expected extracted text %q, got %v", "hi", res.ExtractedText)
	}
	if !strings.HasPrefix(res.URL, "http://localhost:8080/content/") {
		t.Fatalf("unexpected url %q", res.URL)
	}

	files, err := store.ListFilesByUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 1 || files[0].ID != res.ID {
		t.Fatalf("expected one file row matching result, got %+v", files)
	}
	if files[0].Size == nil || *files[0].Size != 2 {
		t.Fatalf("expected size 2, got %v", files[0].Size)
	}
}

func TestUploadFilePrettyPrintsJSON(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	user := newTestUser(t, store)

	res, err := svc.UploadFile(context.Background(), user.ID, UploadInput{
		Filename: "data.json",
		Content:  base64.StdEncoding.EncodeToString([]byte(`{"a":1}`)),
		MimeType: "application/json",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	want := "{\n  \"a\": 1\n}"
	if res.ExtractedText == nil || *res.ExtractedText != want {
		t.Fatalf("expected pretty JSON %q, got %v", want, res.ExtractedText)
	}
}

func TestUploadFileInvalidJSONFallsBackToRaw(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	user := newTestUser(t, store)

	res, err := svc.UploadFile(context.Background(), user.ID, UploadInput{
		Filename: "broken.json",
		Content:  base64.StdEncoding.EncodeToString([]byte(`{not json`)),
		MimeType: "application/json",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.ExtractedText == nil || *res.ExtractedText != "{not json" {
		t.Fatalf("expected raw fallback, got %v", res.ExtractedText)
	}
}

func TestUploadFileBinaryHasNoExtractedText(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	user := newTestUser(t, store)

	res, err := svc.UploadFile(context.Background(), user.ID, UploadInput{
		Filename: "pic.png",
		Content:  base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47}),
		MimeType: "image/png",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.ExtractedText != nil {
		t.Fatalf("expected nil extracted text, got %q", *res.ExtractedText)
	}
}

func TestUploadFileRejectsBadBase64(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	user := newTestUser(t, store)

	_, err := svc.UploadFile(context.Background(), user.ID, UploadInput{
		Filename: "x.txt",
		Content:  "!!not-base64!!",
		MimeType: "text/plain",
	})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	files, _ := store.ListFilesByUser(context.Background(), user.ID)
	if len(files) != 0 {
		t.Fatalf("expected no file rows, got %d", len(files))
	}
}

func TestGenerateImageRecordsFile(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	user := newTestUser(t, store)

	img, err := svc.GenerateImage(context.Background(), user.ID, "a red fox", nil)
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if img.URL != "https://img.example.com/out.png" {
		t.Fatalf("unexpected url %q", img.URL)
	}

	files, _ := store.ListFilesByUser(context.Background(), user.ID)
	if len(files) != 1 {
		t.Fatalf("expected one file row, got %d", len(files))
	}
	f := files[0]
	if !strings.HasPrefix(f.Filename, "generated-") || !strings.HasSuffix(f.Filename, ".png") {
		t.Fatalf("unexpected filename %q", f.Filename)
	}
	if f.ExtractedText == nil || *f.ExtractedText != "Generated from prompt: a red fox" {
		t.Fatalf("unexpected extracted text %v", f.ExtractedText)
	}
	if f.Size == nil || *f.Size != 0 {
		t.Fatalf("expected size 0 for generated image, got %v", f.Size)
	}
}

func TestGenerateImageProviderFailure(t *testing.T) {
	svc, store, images, _ := newTestService(t)
	user := newTestUser(t, store)
	images.err = errors.New("boom")

	if _, err := svc.GenerateImage(context.Background(), user.ID, "x", nil); !errors.Is(err, ErrImageFailed) {
		t.Fatalf("expected ErrImageFailed, got %v", err)
	}
	files, _ := store.ListFilesByUser(context.Background(), user.ID)
	if len(files) != 0 {
		t.Fatalf("expected no file rows after failure, got %d", len(files))
	}
}

func TestUploadAndTranscribe(t *testing.T) {
	svc, store, _, transcriber := newTestService(t)
	user := newTestUser(t, store)

	res, err := svc.UploadAndTranscribe(context.Background(), user.ID, TranscribeUploadInput{
		Filename: "memo.webm",
		Content:  base64.StdEncoding.EncodeToString([]byte("audio-bytes")),
		MimeType: "audio/webm",
		Language: "en",
	})
	if err != nil {
		t.Fatalf("upload and transcribe: %v", err)
	}
	if res.Text != "hello world" || res.Language != "en" {
		t.Fatalf("unexpected result %+v", res)
	}
	if transcriber.lastReq.Filename != "memo.webm" || transcriber.lastReq.MimeType != "audio/webm" {
		t.Fatalf("unexpected transcribe request %+v", transcriber.lastReq)
	}

	files, _ := store.ListFilesByUser(context.Background(), user.ID)
	if len(files) != 1 {
		t.Fatalf("expected one file row, got %d", len(files))
	}
	if files[0].ExtractedText == nil || *files[0].ExtractedText != "hello world" {
		t.Fatalf("expected transcript as extracted text, got %v", files[0].ExtractedText)
	}
}

func TestUploadAndTranscribeRejectsOversizedAudio(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	user := newTestUser(t, store)

	big := make([]byte, maxAudioBytes+1)
	_, err := svc.UploadAndTranscribe(context.Background(), user.ID, TranscribeUploadInput{
		Filename: "big.wav",
		Content:  base64.StdEncoding.EncodeToString(big),
		MimeType: "audio/wav",
	})
	if !errors.Is(err, ErrAudioTooLarge) {
		t.Fatalf("expected ErrAudioTooLarge, got %v", err)
	}
	files, _ := store.ListFilesByUser(context.Background(), user.ID)
	if len(files) != 0 {
		t.Fatalf("expected no side effects, got %d file rows", len(files))
	}
}

func TestUploadAndTranscribeFailureWritesNoRow(t *testing.T) {
	svc, store, _, transcriber := newTestService(t)
	user := newTestUser(t, store)
	transcriber.err = errors.New("whisper down")

	_, err := svc.UploadAndTranscribe(context.Background(), user.ID, TranscribeUploadInput{
		Filename: "memo.webm",
		Content:  base64.StdEncoding.EncodeToString([]byte("audio")),
		MimeType: "audio/webm",
	})
	if !errors.Is(err, ErrTranscribeFailed) {
		t.Fatalf("expected ErrTranscribeFailed, got %v", err)
	}
	files, _ := store.ListFilesByUser(context.Background(), user.ID)
	if len(files) != 0 {
		t.Fatalf("expected no file rows, got %d", len(files))
	}
}

func TestTranscribeAudioFetchesURL(t *testing.T) {
	svc, _, _, transcriber := newTestService(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("remote-audio"))
	}))
	defer srv.Close()

	tr, err := svc.TranscribeAudio(context.Background(), srv.URL+"/clip.mp3", "de")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if tr.Text != "hello world" {
		t.Fatalf("unexpected text %q", tr.Text)
	}
	if string(transcriber.lastReq.Audio) != "remote-audio" {
		t.Fatalf("expected fetched bytes to be forwarded, got %q", transcriber.lastReq.Audio)
	}
	if transcriber.lastReq.Filename != "clip.mp3" || transcriber.lastReq.Language != "de" {
		t.Fatalf("unexpected request %+v", transcriber.lastReq)
	}
}

func TestTranscribeAudioUnreachableURL(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.TranscribeAudio(context.Background(), "http://127.0.0.1:1/clip.mp3", ""); !errors.Is(err, ErrTranscribeFailed) {
		t.Fatalf("expected ErrTranscribeFailed, got %v", err)
	}
}
