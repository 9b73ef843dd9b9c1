package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/lexrag/internal/llm"
)

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) *llm.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := llm.NewClient("sk-test", srv.URL+"/")
	require.NoError(t, err)
	return client
}

func TestOpenAITranscriber_Transcribe(t *testing.T) {
	var gotModel, gotFilename, gotBody string
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		gotModel = r.FormValue("model")

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		gotFilename = header.Filename
		body, _ := io.ReadAll(file)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  hello from the recording  "})
	})

	tr := NewOpenAITranscriber(client, "", nil)
	text, err := tr.Transcribe(context.Background(), []byte("fake audio"), "clip.mp3")

	require.NoError(t, err)
	assert.Equal(t, "hello from the recording", text)
	assert.Equal(t, "whisper-1", gotModel)
	assert.Equal(t, "clip.mp3", gotFilename)
	assert.Equal(t, "fake audio", gotBody)
}

func TestOpenAITranscriber_EmptyInput(t *testing.T) {
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty media")
	})

	text, err := NewOpenAITranscriber(client, "", nil).Transcribe(context.Background(), nil, "x.webm")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestOpenAITranscriber_APIError(t *testing.T) {
	calls := 0
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"unsupported format","type":"invalid_request_error"}}`)
	})

	_, err := NewOpenAITranscriber(client, "", nil).Transcribe(context.Background(), []byte("x"), "x.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x.bin")
	assert.Equal(t, 1, calls, "client errors are not retried")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", contentType("noext"))
	assert.Equal(t, "image/png", contentType("a.PNG"))
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.mp3":
			_, _ = io.WriteString(w, "audio-bytes")
		case "/big.mp3":
			_, _ = io.WriteString(w, strings.Repeat("x", 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0, 32)
	ctx := context.Background()

	data, err := f.Fetch(ctx, srv.URL+"/ok.mp3")
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))

	_, err = f.Fetch(ctx, srv.URL+"/big.mp3")
	assert.ErrorIs(t, err, ErrMediaTooLarge)

	_, err = f.Fetch(ctx, srv.URL+"/missing.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
