package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"categorybot/internal/bot"
)

type fileFetcher struct {
	api    BotAPI
	client *http.Client
}

// NewFileFetcher downloads attachments through the Bot API file endpoint.
// A nil client gets a default with a one minute timeout.
func NewFileFetcher(api BotAPI, client *http.Client) bot.FileFetcher {
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	return &fileFetcher{api: api, client: client}
}

func (f *fileFetcher) FetchFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := f.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build file request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file %s: status %d", fileID, resp.StatusCode)
	}
	return resp.Body, nil
}
