package internetsearch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// maxResponseBytes caps how much of a provider response is read
const maxResponseBytes = 4 << 20

// maxErrorBodyChars caps the response body quoted in a StatusError
const maxErrorBodyChars = 200

// DoJSON sends req, checks the status and decodes the JSON body into out.
// Non-2xx answers become a *StatusError.
func DoJSON(client HTTPClientInterface, logger *logrus.Logger, provider string, req *http.Request, out any) error {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.WithFields(logrus.Fields{
			"provider":    provider,
			"status_code": resp.StatusCode,
		}).Warn("Search provider returned an error status")
		return &StatusError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       Truncate(CleanText(string(body)), maxErrorBodyChars),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", provider, err)
	}

	logger.WithFields(logrus.Fields{
		"provider":      provider,
		"status_code":   resp.StatusCode,
		"response_size": len(body),
	}).Debug("Search provider request successful")

	return nil
}
