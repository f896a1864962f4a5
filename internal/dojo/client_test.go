package dojo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scandrift/trivy-dojo-operator/internal/config"
)

func testPayload() *Payload {
	return &Payload{
		ReportJSON: []byte(`{"kind":"VulnerabilityReport"}`),
		Fields: map[string]string{
			"scan_type": "Trivy Operator Scan",
			"service":   "default__ReplicaSet__web__web__team/web",
			"tags":      "image_digest=sha256:abcd",
		},
	}
}

func newTestClient(url string) *Client {
	return NewClient(config.Config{
		URL:            url,
		APIKey:         "secret",
		RequestTimeout: 5 * time.Second,
	}, slog.Default())
}

func TestSubmit(t *testing.T) {
	var received *http.Request
	var fileContent []byte
	var fileName string
	form := map[string]string{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Clone(r.Context())

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		for field, values := range r.MultipartForm.Value {
			form[field] = values[0]
		}

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		fileName = header.Filename
		fileContent, err = io.ReadAll(file)
		assert.NoError(t, err)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"test_id": 42}`))
	}))
	defer server.Close()

	err := newTestClient(server.URL).Submit(context.Background(), testPayload())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, received.Method)
	assert.Equal(t, "/api/v2/reimport-scan/", received.URL.Path)
	assert.Equal(t, "Token secret", received.Header.Get("Authorization"))
	assert.Equal(t, "application/json", received.Header.Get("Accept"))

	assert.Equal(t, "report.json", fileName)
	assert.JSONEq(t, `{"kind":"VulnerabilityReport"}`, string(fileContent))
	assert.Equal(t, map[string]string{
		"scan_type": "Trivy Operator Scan",
		"service":   "default__ReplicaSet__web__web__team/web",
		"tags":      "image_digest=sha256:abcd",
	}, form)
}

func TestSubmitInsecureTLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(config.Config{
		URL:                   server.URL,
		APIKey:                "secret",
		RequestTimeout:        5 * time.Second,
		InsecureSkipTLSVerify: true,
	}, slog.Default())

	// The self-signed test certificate is only accepted because
	// verification is disabled.
	err := client.Submit(context.Background(), testPayload())
	require.NoError(t, err)

	// The insecure transport is a clone of the default one, so proxy and
	// dial settings survive.
	transport, ok := client.httpClient.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
	assert.NotNil(t, transport.Proxy)
}

func TestSubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "invalid scan type"}`))
	}))
	defer server.Close()

	err := newTestClient(server.URL).Submit(context.Background(), testPayload())

	rejected := &DeliveryRejectedError{}
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusInternalServerError, rejected.StatusCode)
	assert.Contains(t, rejected.Body, "invalid scan type")
	assert.Contains(t, err.Error(), "invalid scan type")
}

func TestSubmitConnectionRefused(t *testing.T) {
	// Start and immediately stop a server to obtain an address nothing
	// listens on.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	err := newTestClient(server.URL).Submit(context.Background(), testPayload())

	transport := &TransportError{}
	require.ErrorAs(t, err, &transport)
}

func TestSubmitContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body first: the server only watches for a client
		// disconnect (which cancels the request context) once the body
		// has been consumed. Without this, Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := newTestClient(server.URL).Submit(ctx, testPayload())

	transport := &TransportError{}
	require.ErrorAs(t, err, &transport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
