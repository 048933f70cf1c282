package v1

import (
	"context"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/itemsearch/ai/recognition"
	"github.com/hrygo/itemsearch/internal/profile"
	"github.com/hrygo/itemsearch/internal/thumbnail"
	"github.com/hrygo/itemsearch/server/metrics"
	"github.com/hrygo/itemsearch/store"
)

type APIV1Service struct {
	Profile    *profile.Profile
	Store      *store.Store
	Recognizer *recognition.Recognizer
	// Metrics may be nil.
	Metrics *metrics.PrometheusExporter

	thumbnailSemaphore *semaphore.Weighted
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, recognizer *recognition.Recognizer, exporter *metrics.PrometheusExporter) *APIV1Service {
	concurrency := profile.ThumbnailConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &APIV1Service{
		Profile:            profile,
		Store:              store,
		Recognizer:         recognizer,
		Metrics:            exporter,
		thumbnailSemaphore: semaphore.NewWeighted(int64(concurrency)),
	}
}

// RegisterRoutes registers the item search endpoints with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	group := echoServer.Group("/item_search")
	group.GET("/count", s.CountItems)
	group.POST("/search", s.SearchItems)
	group.POST("/insert", s.InsertItem)
	group.POST("/recognize", s.RecognizeItem)
}

// makeThumbnail bounds concurrent image decoding by thumbnailSemaphore.
func (s *APIV1Service) makeThumbnail(ctx context.Context, image []byte) ([]byte, error) {
	if err := s.thumbnailSemaphore.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.thumbnailSemaphore.Release(1)

	return thumbnail.Make(image, s.Profile.ThumbnailSize)
}
