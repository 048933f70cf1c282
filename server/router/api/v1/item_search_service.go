package v1

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/itemsearch/ai/recognition"
	"github.com/hrygo/itemsearch/internal/thumbnail"
	"github.com/hrygo/itemsearch/store"
)

const (
	msgCategoryNotDefined   = "category is not defined"
	msgImageNotDefined      = "image_data is not defined"
	msgCategoryNotSupported = "category is not supported"
	msgInternalError        = "Internal error"
)

// listResponse is the envelope of count and search responses.
type listResponse struct {
	Code   int    `json:"code"`
	Result []any  `json:"result"`
	Msg    string `json:"msg"`
}

type errorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type resultResponse struct {
	Result string `json:"result"`
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Msg: msg})
}

func internalError(c echo.Context, action string, err error) error {
	slog.Error(action, "error", fmt.Sprintf("%+v", err))
	return c.JSON(http.StatusInternalServerError, errorResponse{Code: http.StatusInternalServerError, Msg: msgInternalError})
}

// CountItems handles GET /item_search/count.
func (s *APIV1Service) CountItems(c echo.Context) error {
	count, err := s.Store.CountItems(c.Request().Context())
	if err != nil {
		return internalError(c, "failed to count items", err)
	}
	return c.JSON(http.StatusOK, listResponse{Code: http.StatusOK, Result: []any{count}})
}

// SearchItems handles POST /item_search/search. With an image of a supported
// category the hits are ranked by embedding distance, otherwise they are
// only filtered by category and keywords.
func (s *APIV1Service) SearchItems(c echo.Context) error {
	ctx := c.Request().Context()

	category := c.FormValue("category")
	if category == "" {
		return badRequest(c, msgCategoryNotDefined)
	}
	limit, err := parseTopK(c.FormValue("top_k"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	find := &store.SearchItems{
		Category: category,
		Keywords: store.ParseKeywords(c.FormValue("keywords")),
		Limit:    limit,
	}

	if payload := c.FormValue("image"); payload != "" && s.Recognizer.Supports(category) {
		result, err := s.recognize(c, payload, category)
		if err != nil {
			return internalError(c, "failed to recognize search image", err)
		}
		find.Vector = result.Embedding
	}

	list, err := s.Store.SearchItems(ctx, find)
	if err != nil {
		return internalError(c, "failed to search items", err)
	}

	rows := make([]any, 0, len(list))
	for _, item := range list {
		row := []any{item.ImageName, thumbnail.DataURI(item.Thumbnail)}
		if item.Distance != nil {
			row = append(row, roundDistance(*item.Distance))
		}
		rows = append(rows, row)
	}
	if s.Metrics != nil {
		s.Metrics.RecordSearch(find.HasVector(), len(rows))
	}
	return c.JSON(http.StatusOK, listResponse{Code: http.StatusOK, Result: rows})
}

// InsertItem handles POST /item_search/insert.
func (s *APIV1Service) InsertItem(c echo.Context) error {
	category := c.FormValue("category")
	if category == "" {
		return badRequest(c, msgCategoryNotDefined)
	}
	payload := c.FormValue("image")
	if payload == "" {
		return badRequest(c, msgImageNotDefined)
	}
	if !s.Recognizer.Supports(category) {
		s.logUnsupported(category)
		return badRequest(c, msgCategoryNotSupported)
	}

	image, err := thumbnail.DecodePayload(payload)
	if err != nil {
		return internalError(c, "failed to decode image", err)
	}
	thumb, err := s.makeThumbnail(c.Request().Context(), image)
	if err != nil {
		return internalError(c, "failed to make thumbnail", err)
	}
	result, err := s.Recognizer.Recognize(c.Request().Context(), thumb, category)
	if err != nil {
		return internalError(c, "failed to recognize image", err)
	}

	item := &store.CatalogItem{
		ImageName:  imageName(c.FormValue("image_name")),
		Category:   category,
		Thumbnail:  thumb,
		Attributes: result.Attributes(),
		Feature:    result.Embedding,
	}
	if err := s.Store.CreateItem(c.Request().Context(), item); err != nil {
		return internalError(c, "failed to insert item", err)
	}

	slog.Info("item inserted", "image_name", item.ImageName, "category", category)
	return c.JSON(http.StatusOK, resultResponse{Result: "success"})
}

// RecognizeItem handles POST /item_search/recognize. Unlike the other
// endpoints its failures are plain text.
func (s *APIV1Service) RecognizeItem(c echo.Context) error {
	category := c.FormValue("category")
	if category == "" {
		return c.String(http.StatusBadRequest, msgCategoryNotDefined)
	}
	payload := c.FormValue("image")
	if payload == "" {
		return c.String(http.StatusBadRequest, msgImageNotDefined)
	}
	if !s.Recognizer.Supports(category) {
		s.logUnsupported(category)
		return c.String(http.StatusBadRequest, msgCategoryNotSupported)
	}

	result, err := s.recognize(c, payload, category)
	if err != nil {
		slog.Error("failed to recognize image", "error", fmt.Sprintf("%+v", err))
		return c.String(http.StatusInternalServerError, msgInternalError)
	}
	return c.JSON(http.StatusOK, resultResponse{Result: result.DisplayAttributes()})
}

// recognize decodes a base64 image payload, thumbnails it and runs the
// category's pipeline over the thumbnail.
func (s *APIV1Service) recognize(c echo.Context, payload, category string) (*recognition.Result, error) {
	image, err := thumbnail.DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	thumb, err := s.makeThumbnail(c.Request().Context(), image)
	if err != nil {
		return nil, err
	}
	return s.Recognizer.Recognize(c.Request().Context(), thumb, category)
}

func (s *APIV1Service) logUnsupported(category string) {
	slog.Warn("category is not supported", "category", category, "supported", s.Recognizer.Categories())
}

// parseTopK reads top_k as a base 10 integer and falls back to the default
// limit for missing or unusable values.
func parseTopK(value string) (int, error) {
	topK, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || topK <= 0 {
		return store.DefaultSearchLimit, nil
	}
	if topK > store.MaxSearchLimit {
		return 0, errors.Errorf("top_k is too large (max %d)", store.MaxSearchLimit)
	}
	return topK, nil
}

// imageName keeps the last path component of the client supplied name and
// generates one when none is given.
func imageName(value string) string {
	if i := strings.LastIndexAny(value, `/\`); i >= 0 {
		value = value[i+1:]
	}
	if value == "" {
		return uuid.NewString()
	}
	return value
}

func roundDistance(dist float64) float64 {
	return math.Round(dist*1000) / 1000
}
