package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDriver is a Driver that records what reaches it.
type recordingDriver struct {
	created  []*CatalogItem
	searched []*SearchItems
}

func (d *recordingDriver) Close() error                   { return nil }
func (d *recordingDriver) Ping(context.Context) error     { return nil }
func (d *recordingDriver) Migrate(context.Context) error  { return nil }
func (d *recordingDriver) CountItems(context.Context) (int64, error) {
	return int64(len(d.created)), nil
}

func (d *recordingDriver) CreateItem(_ context.Context, create *CatalogItem) error {
	d.created = append(d.created, create)
	return nil
}

func (d *recordingDriver) SearchItems(_ context.Context, find *SearchItems) ([]*ItemWithDistance, error) {
	d.searched = append(d.searched, find)
	return []*ItemWithDistance{}, nil
}

func (d *recordingDriver) RunPipeline(context.Context, string, []byte) (string, error) {
	return `{"result":{"emb":[]}}`, nil
}

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{}},
		{"red", []string{"red"}},
		{"red leather", []string{"red", "leather"}},
		{"  red   leather ", []string{"red", "leather"}},
		{"color:red 真皮", []string{"color:red", "真皮"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseKeywords(tt.input), "input %q", tt.input)
	}
}

func TestSearchItemsValidate(t *testing.T) {
	find := &SearchItems{Category: "鞋靴"}
	require.NoError(t, find.Validate())
	assert.Equal(t, DefaultSearchLimit, find.Limit)
	assert.False(t, find.HasVector())

	assert.Error(t, (&SearchItems{}).Validate())
	assert.Error(t, (&SearchItems{Category: "鞋靴", Limit: -1}).Validate())
	assert.Error(t, (&SearchItems{Category: "鞋靴", Limit: MaxSearchLimit + 1}).Validate())

	ranked := &SearchItems{Category: "鞋靴", Vector: []float32{1}, Limit: MaxSearchLimit}
	require.NoError(t, ranked.Validate())
	assert.True(t, ranked.HasVector())
}

func TestCatalogItemValidate(t *testing.T) {
	valid := CatalogItem{ImageName: "foo.jpg", Category: "女装", Thumbnail: []byte{1}}
	require.NoError(t, valid.Validate())

	missingName := valid
	missingName.ImageName = ""
	assert.Error(t, missingName.Validate())

	missingCategory := valid
	missingCategory.Category = ""
	assert.Error(t, missingCategory.Validate())

	missingThumbnail := valid
	missingThumbnail.Thumbnail = nil
	assert.Error(t, missingThumbnail.Validate())
}

func TestStoreValidatesBeforeDriver(t *testing.T) {
	driver := &recordingDriver{}
	s := New(driver)
	ctx := context.Background()

	assert.Error(t, s.CreateItem(ctx, &CatalogItem{Category: "女装"}))
	assert.Empty(t, driver.created)

	_, err := s.SearchItems(ctx, &SearchItems{Limit: 5})
	assert.Error(t, err)
	assert.Empty(t, driver.searched)

	require.NoError(t, s.CreateItem(ctx, &CatalogItem{ImageName: "a", Category: "女装", Thumbnail: []byte{1}}))
	_, err = s.SearchItems(ctx, &SearchItems{Category: "女装"})
	require.NoError(t, err)
	require.Len(t, driver.searched, 1)
	assert.Equal(t, DefaultSearchLimit, driver.searched[0].Limit)

	count, err := s.CountItems(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
