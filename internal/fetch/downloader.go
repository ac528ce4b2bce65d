package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"diagbench/internal/util"
)

// Downloader streams PDFs to disk with a per-attempt deadline and a byte cap.
// One retry is applied on timeout or transport error; HTTP status and content
// checks fail immediately.
type Downloader struct {
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
}

func NewDownloader(client *http.Client, maxBytes int64, timeout time.Duration) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{client: client, maxBytes: maxBytes, timeout: timeout}
}

// Download fetches pdfURL into destPath. The file appears at destPath only on
// full success; partial downloads are cleaned up. An existing non-empty file
// is kept as is, so a retried paper never refetches.
func (d *Downloader) Download(ctx context.Context, pdfURL, destPath string) error {
	if fi, err := os.Stat(destPath); err == nil && fi.Size() > 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	err := d.attempt(ctx, pdfURL, destPath)
	if err != nil && errors.Is(err, util.ErrTransient) && ctx.Err() == nil {
		err = d.attempt(ctx, pdfURL, destPath)
	}
	return err
}

func (d *Downloader) attempt(ctx context.Context, pdfURL, destPath string) error {
	attemptCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "diagbench/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download %s: %v", util.ErrTransient, pdfURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: download %s: status %s", util.ErrTransient, pdfURL, resp.Status)
	default:
		return fmt.Errorf("%w: download %s: status %s", util.ErrPermanent, pdfURL, resp.Status)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "pdf") && !strings.Contains(ct, "octet-stream") {
		return fmt.Errorf("%w: download %s: content type %q", util.ErrPermanent, pdfURL, ct)
	}
	if d.maxBytes > 0 && resp.ContentLength > d.maxBytes {
		return fmt.Errorf("%w: download %s: %d bytes exceeds cap", util.ErrPermanent, pdfURL, resp.ContentLength)
	}

	tmp := destPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	err = d.copyChecked(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download %s: %w", pdfURL, err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize %s: %w", destPath, err)
	}
	return nil
}

// copyChecked streams the body enforcing the byte cap and validating the PDF
// magic bytes, since some mirrors return HTML error pages with a 200.
func (d *Downloader) copyChecked(dst io.Writer, src io.Reader) error {
	var head bytes.Buffer
	tee := io.TeeReader(io.LimitReader(src, 5), &head)
	if _, err := io.Copy(dst, tee); err != nil {
		return fmt.Errorf("%w: %v", util.ErrTransient, err)
	}
	if !bytes.HasPrefix(head.Bytes(), []byte("%PDF")) {
		return fmt.Errorf("%w: response is not a pdf", util.ErrMalformedDocument)
	}

	remaining := src
	if d.maxBytes > 0 {
		remaining = io.LimitReader(src, d.maxBytes)
	}
	n, err := io.Copy(dst, remaining)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrTransient, err)
	}
	if d.maxBytes > 0 && n+5 > d.maxBytes {
		return fmt.Errorf("%w: body exceeds %d byte cap", util.ErrPermanent, d.maxBytes)
	}
	return nil
}
