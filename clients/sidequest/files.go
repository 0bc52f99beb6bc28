package sidequest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sideQuest/api"
)

// ProgressFunc receives the percentage of the upload body consumed so far.
type ProgressFunc func(percent int)

// progressReader wraps the upload body and reports percent complete as the
// body is read. The transport may buffer ahead of the wire, so this tracks
// read progress, not delivery.
type progressReader struct {
	r      io.Reader
	total  int64
	sent   int64
	last   int
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.sent += int64(n)
		pct := int(p.sent * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}

// UploadFile sends a file as multipart form data. With a progress callback
// the body is read through a counting reader; without one it is a plain
// multipart request.
func (c *Client) UploadFile(ctx context.Context, endpoint, path string, onProgress ProgressFunc, opts Options, out any) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return nil, &api.Error{
			Message: fmt.Sprintf("opening upload file: %s", err),
			Code:    api.CodeClientError,
		}
	}
	defer f.Close()

	var body io.Reader = f
	if onProgress != nil {
		info, err := f.Stat()
		if err != nil {
			return nil, &api.Error{
				Message: fmt.Sprintf("sizing upload file: %s", err),
				Code:    api.CodeClientError,
			}
		}
		body = &progressReader{r: f, total: info.Size(), last: -1, report: onProgress}
	}

	opts.Body = nil
	headers := c.mergeHeaders(opts)
	delete(headers, "Content-Type") // the multipart writer sets the boundary

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParams(opts.Params).
		SetFileReader("file", filepath.Base(path), body).
		Post(endpoint)
	if err != nil {
		if apiErr := c.classifyTransportError(ctx, err, timeout); apiErr.Code == api.CodeTimeout {
			return nil, apiErr
		}
		return nil, &api.Error{
			Message: fmt.Sprintf("network error during upload: %s", err),
			Code:    api.CodeNetwork,
		}
	}
	if resp.IsError() {
		return nil, decodeErrorBody(resp.Body(), resp.StatusCode())
	}

	result := Response{
		Status:    resp.StatusCode(),
		Headers:   resp.Header(),
		Body:      resp.Body(),
		Timestamp: time.Now(),
	}
	if err := decodeInto(result.Body, result.Headers, out); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadFile streams a binary GET into dest. The payload lands in a
// temporary file first and is renamed into place only on success; the
// temporary file is removed on every failure path.
func (c *Client) DownloadFile(ctx context.Context, endpoint, dest string, opts Options) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts.Body = nil
	headers := c.mergeHeaders(opts)
	headers["Accept"] = "application/octet-stream"

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParams(opts.Params).
		SetDoNotParseResponse(true).
		Get(endpoint)
	if err != nil {
		if apiErr := c.classifyTransportError(ctx, err, timeout); apiErr.Code == api.CodeTimeout {
			return apiErr
		}
		return &api.Error{
			Message: fmt.Sprintf("download failed: %s", err),
			Code:    api.CodeDownload,
		}
	}
	raw := resp.RawBody()
	defer raw.Close()

	if resp.IsError() {
		body, _ := io.ReadAll(io.LimitReader(raw, 1<<16))
		return decodeErrorBody(body, resp.StatusCode())
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".sidequest-dl-*")
	if err != nil {
		return &api.Error{
			Message: fmt.Sprintf("creating download file: %s", err),
			Code:    api.CodeDownload,
		}
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			slog.With("error", err.Error()).Warn("failed to clean up download temp file")
		}
	}()

	if _, err := io.Copy(tmp, raw); err != nil {
		return &api.Error{
			Message: fmt.Sprintf("writing download: %s", err),
			Code:    api.CodeDownload,
		}
	}
	if err := tmp.Close(); err != nil {
		return &api.Error{
			Message: fmt.Sprintf("flushing download: %s", err),
			Code:    api.CodeDownload,
		}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &api.Error{
			Message: fmt.Sprintf("moving download into place: %s", err),
			Code:    api.CodeDownload,
		}
	}
	return nil
}
