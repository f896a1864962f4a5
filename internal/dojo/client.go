package dojo

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/scandrift/trivy-dojo-operator/internal/config"
)

const reimportScanPath = "/api/v2/reimport-scan/"

// Submitter delivers an assembled payload to the vulnerability-management
// service.
type Submitter interface {
	Submit(ctx context.Context, payload *Payload) error
}

// Client submits scan reports to DefectDojo's reimport-scan API.
// One POST per payload, no internal retry.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	transport := http.DefaultTransport
	if cfg.InsecureSkipTLSVerify {
		// DefectDojo instances this operator talks to sit behind
		// self-signed certificates. Opt-out via configuration. Cloning
		// keeps the default proxy and dial settings.
		insecure := http.DefaultTransport.(*http.Transport).Clone()
		insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit configuration choice
		transport = insecure
	}

	return &Client{
		endpoint: cfg.URL,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		logger: logger.With("component", "dojo-client"),
	}
}

// Submit uploads the payload as a multipart form. A non-2xx response comes
// back as a DeliveryRejectedError, anything that kept the request from
// completing as a TransportError.
func (c *Client) Submit(ctx context.Context, payload *Payload) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filePart, err := writer.CreateFormFile("file", "report.json")
	if err != nil {
		return &TransportError{Err: fmt.Errorf("unable to create file part: %w", err)}
	}
	if _, err := filePart.Write(payload.ReportJSON); err != nil {
		return &TransportError{Err: fmt.Errorf("unable to write report file: %w", err)}
	}

	for field, value := range payload.Fields {
		if err := writer.WriteField(field, value); err != nil {
			return &TransportError{Err: fmt.Errorf("unable to write form field %q: %w", field, err)}
		}
	}

	if err := writer.Close(); err != nil {
		return &TransportError{Err: fmt.Errorf("unable to finalize multipart body: %w", err)}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+reimportScanPath, body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("unable to build request: %w", err)}
	}
	request.Header.Set("Authorization", "Token "+c.apiKey)
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("unable to read response body: %w", err)}
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return &DeliveryRejectedError{
			Status:     response.Status,
			StatusCode: response.StatusCode,
			Body:       string(responseBody),
		}
	}

	c.logger.DebugContext(ctx, "Scan import accepted",
		"status", response.Status,
		"response", string(responseBody),
	)

	return nil
}
