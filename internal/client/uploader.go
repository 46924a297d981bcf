package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Uploader posts images to the external media endpoint, which answers
// with {"imageUrl": "..."}.
type Uploader struct {
	url        string
	httpClient *http.Client
}

func NewUploader(url string, httpClient *http.Client) *Uploader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Uploader{url: url, httpClient: httpClient}
}

type uploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

// Upload sends the image as multipart field "image" and returns the hosted URL.
func (u *Uploader) Upload(ctx context.Context, filename string, image io.Reader) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return "", WrapError(CodeUpload, "build upload form", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return "", WrapError(CodeUpload, "read image", err)
	}
	if err := form.Close(); err != nil {
		return "", WrapError(CodeUpload, "build upload form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, &body)
	if err != nil {
		return "", WrapError(CodeUpload, "build upload request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", WrapError(CodeUpload, "upload request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", NewError(CodeUpload, fmt.Sprintf("upload rejected with status %d", resp.StatusCode))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", WrapError(CodeUpload, "decode upload response", err)
	}
	if out.ImageURL == "" {
		return "", NewError(CodeUpload, "upload response without imageUrl")
	}
	return out.ImageURL, nil
}
