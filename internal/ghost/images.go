package ghost

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/starford/ansuz/internal/publish"
)

var _ publish.MediaHost = (*Client)(nil)

type imagesResponse struct {
	Images []struct {
		URL string `json:"url"`
		Ref string `json:"ref"`
	} `json:"images"`
}

// UploadImage stores an image on the site and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, name string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("ghost: build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("ghost: build upload: %w", err)
	}
	if err := w.WriteField("purpose", "image"); err != nil {
		return "", fmt.Errorf("ghost: build upload: %w", err)
	}
	if err := w.WriteField("ref", name); err != nil {
		return "", fmt.Errorf("ghost: build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ghost: build upload: %w", err)
	}

	var resp imagesResponse
	if err := c.do(ctx, http.MethodPost, "images/upload/", w.FormDataContentType(), &buf, &resp); err != nil {
		return "", err
	}
	if len(resp.Images) == 0 || resp.Images[0].URL == "" {
		return "", fmt.Errorf("ghost: upload %q: empty images response", name)
	}
	return resp.Images[0].URL, nil
}
