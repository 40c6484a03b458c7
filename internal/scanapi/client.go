package scanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoints of the label scanning API. Upload and fetch ride different
// API versions; that mirrors the mobile clients.
const (
	authPath   = "/oauth/token"
	uploadPath = "/v/10.0.0/scans/label"
	fetchPath  = "/v/9.0.0/scans/v2/label/"

	labelDetailPath = "/v/9.0.0/scans/v2/label/"
	userVintagePath = "/v/9.1.1/user_vintages/"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrAuthFailed reports a rejected password grant.
	ErrAuthFailed = errors.New("scan api authentication failed")
	// ErrUploadRejected reports a non-200 upload response.
	ErrUploadRejected = errors.New("scan api rejected upload")
	// ErrStillProcessing reports a fetch that returned no result yet.
	ErrStillProcessing = errors.New("scan still processing")
	// ErrFetchTimeout reports a scan that never completed within the
	// configured retry budget.
	ErrFetchTimeout = errors.New("scan result fetch timed out")
)

// Client talks to one environment of the label scanning API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithToken seeds an access token, skipping Authenticate.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient creates a client for the given API base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Credentials identify an API user for the password grant.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Authenticate exchanges user credentials for an access token and stores
// it on the client.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) error {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"username":      {creds.Username},
		"password":      {creds.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", ErrAuthFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode auth response: %w", err)
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrAuthFailed)
	}
	c.token = payload.AccessToken
	return nil
}

// UploadRequest is one label image upload.
type UploadRequest struct {
	Filename string
	Image    []byte
	// OCRText, when set, is passed as the label_ocr hint with source
	// "vision", matching what the mobile vision pipeline sends.
	OCRText string
	// Crop forwards a normalized crop rectangle to the backend.
	Crop *CropRect
}

// CropRect is a normalized crop rectangle forwarded as query parameters.
type CropRect struct {
	X, Y, Width, Height float64
}

// Upload posts a label image and returns the processing id to poll.
func (c *Client) Upload(ctx context.Context, upload UploadRequest) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", upload.Filename)
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(upload.Image); err != nil {
		return "", fmt.Errorf("write image part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finish multipart body: %w", err)
	}

	query := url.Values{
		"image_type":          {"jpg"},
		"add_user_vintage":    {"true"},
		"queue_tier_matching": {"false"},
	}
	if upload.OCRText != "" {
		query.Set("label_ocr", upload.OCRText)
		query.Set("label_ocr_source", "vision")
	}
	if upload.Crop != nil {
		query.Set("crop_x", formatFloat(upload.Crop.X))
		query.Set("crop_y", formatFloat(upload.Crop.Y))
		query.Set("crop_width", formatFloat(upload.Crop.Width))
		query.Set("crop_height", formatFloat(upload.Crop.Height))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath+"?"+query.Encode(), &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", upload.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrUploadRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload struct {
		ProcessingID flexString `json:"processing_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if payload.ProcessingID == "" {
		return "", fmt.Errorf("%w: no processing_id in response", ErrUploadRejected)
	}
	return string(payload.ProcessingID), nil
}

// ScanResult is a completed scan as the fetch endpoint reports it.
type ScanResult struct {
	LabelID       string
	UserVintageID string
	UploadStatus  string
	MatchStatus   string
	VintageID     string
	WineID        string
	Confidence    string
	MatchMessage  string
	ImageLocation string
}

// Matched reports whether the backend matched the label to a vintage.
func (r ScanResult) Matched() bool { return r.MatchStatus == "Matched" }

type scanPayload struct {
	ID            flexString `json:"id"`
	UserVintageID flexString `json:"user_vintage_id"`
	UploadStatus  string     `json:"upload_status"`
	MatchStatus   string     `json:"match_status"`
	VintageID     flexString `json:"vintage_id"`
	WineID        flexString `json:"wine_id"`
	Confidence    flexString `json:"confidence"`
	MatchMessage  string     `json:"match_message"`
	Image         struct {
		Location string `json:"location"`
	} `json:"image"`
}

// Fetch polls the scan result once. A 204 means the backend is still
// working; the caller decides the retry policy.
func (c *Client) Fetch(ctx context.Context, processingID string) (*ScanResult, error) {
	fetchURL := c.baseURL + fetchPath + url.PathEscape(processingID) + "?user_id=3&language=en"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", processingID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, ErrStillProcessing
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch %s: status %d: %s", processingID, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload scanPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode scan result: %w", err)
	}
	return &ScanResult{
		LabelID:       string(payload.ID),
		UserVintageID: string(payload.UserVintageID),
		UploadStatus:  payload.UploadStatus,
		MatchStatus:   payload.MatchStatus,
		VintageID:     string(payload.VintageID),
		WineID:        string(payload.WineID),
		Confidence:    string(payload.Confidence),
		MatchMessage:  payload.MatchMessage,
		ImageLocation: strings.TrimPrefix(payload.Image.Location, "//"),
	}, nil
}

// WaitForResult polls Fetch until the scan completes, the retry budget is
// spent, or ctx is cancelled. Transient fetch errors count against the
// budget rather than aborting the scan.
func (c *Client) WaitForResult(ctx context.Context, processingID string, retries int, delay time.Duration) (*ScanResult, error) {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		result, err := c.Fetch(ctx, processingID)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrStillProcessing) {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", ErrFetchTimeout, lastErr)
	}
	return nil, ErrFetchTimeout
}

// formatFloat renders crop coordinates without exponent notation.
func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}

// flexString decodes JSON values that arrive as either strings or
// numbers, and renders null as "".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
