package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// UploadFile is one part of a multipart upload.
type UploadFile struct {
	Field    string
	Name     string
	Contents []byte
}

// Upload sends a multipart/form-data request (e.g. product images in the
// admin back-office). onProgress, if non-nil, receives the percentage of the
// request body written, 0-100. The final callback is always 100.
func (c *Client) Upload(ctx context.Context, endpoint string, fields map[string]string, files []UploadFile, onProgress func(pct int)) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("%w: circuit breaker open", ErrNetworkUnreachable)
	}
	if err := c.probeHealth(ctx); err != nil {
		return nil, err
	}
	c.limiter.Wait()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for key, val := range fields {
		if err := w.WriteField(key, val); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create file part %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Contents); err != nil {
			return nil, fmt.Errorf("failed to write file part %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	total := int64(buf.Len())
	var reader io.Reader = &buf
	if onProgress != nil {
		reader = &progressReader{r: &buf, total: total, onProgress: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, err
	}
	// Content-type override: the multipart boundary replaces application/json.
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.ContentLength = total
	if err := c.attachToken(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, classifyTransportErr(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		return nil, &HTTPError{Status: resp.StatusCode, Payload: payload}
	}

	c.breaker.RecordSuccess()
	if onProgress != nil {
		onProgress(100)
	}
	return payload, nil
}

// progressReader reports the percentage of bytes read from the request body.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	lastPct    int
	onProgress func(pct int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)

	if p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct != p.lastPct {
			p.lastPct = pct
			p.onProgress(pct)
		}
	}
	return n, err
}
