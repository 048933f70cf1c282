package recognition

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// HTTPRunner runs pipelines hosted behind an HTTP recognition service:
//
//	POST {baseURL}/pipelines/{pipeline}/run
//	Content-Type: application/octet-stream
//
// The response body is the pipeline's JSON output.
type HTTPRunner struct {
	client *resty.Client
}

// NewHTTPRunner creates an HTTPRunner. A zero timeout means no timeout.
func NewHTTPRunner(baseURL string, timeout time.Duration) *HTTPRunner {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPRunner{client: client}
}

func (r *HTTPRunner) RunPipeline(ctx context.Context, pipeline string, image []byte) (string, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetPathParam("pipeline", pipeline).
		SetBody(image).
		Post("/pipelines/{pipeline}/run")
	if err != nil {
		return "", errors.Wrap(err, "recognition request failed")
	}
	if resp.StatusCode() != http.StatusOK {
		return "", errors.Errorf("recognition service returned %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.String(), nil
}
