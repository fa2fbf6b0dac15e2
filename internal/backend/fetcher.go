package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher загружает исходные байты изображения по URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher — Fetcher поверх обычного HTTPS GET.
//
// Грубо соответствует стилю worker.HTTPExecutor у учителя: собственный
// http.Client, явный NewRequestWithContext, классификация ошибки по
// сетевому таймауту.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher создаёт HTTPFetcher с клиентом по умолчанию.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch выполняет GET-запрос и возвращает тело ответа целиком.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrImageDownload, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d fetching %s", ErrImageDownload, resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrImageDownload, err)
	}

	return body, nil
}
