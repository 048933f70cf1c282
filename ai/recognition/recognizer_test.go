package recognition

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dressOutput = `{"result": {"emb": [0.5, 1, -2.25], "categoryName": "dress",
	"properties": [{"propertyName": "color", "valueName": "red"}, {"propertyName": "sleeve", "valueName": "long"}]}}`

type fakeRunner struct {
	mu     sync.Mutex
	output string
	err    error
	calls  []string
	images [][]byte
}

func (f *fakeRunner) RunPipeline(_ context.Context, pipeline string, image []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pipeline)
	f.images = append(f.images, image)
	return f.output, f.err
}

type fakeObserver struct {
	pipelines []string
	outcomes  []bool
}

func (o *fakeObserver) RecordPipelineRun(pipeline string, _ time.Duration, success bool) {
	o.pipelines = append(o.pipelines, pipeline)
	o.outcomes = append(o.outcomes, success)
}

func TestDefaultPipelines(t *testing.T) {
	pipelines := DefaultPipelines()

	tests := []struct {
		category string
		pipeline string
	}{
		{CategoryWomen, "female_cloth_recognizer"},
		{CategoryMen, "male_cloth_recognizer"},
		{CategoryChildren, "child_cloth_recognizer"},
		{CategoryShoes, "shoe_recognizer"},
		{CategoryBags, "bag_recognizer"},
	}
	for _, tt := range tests {
		got, ok := pipelines.Lookup(tt.category)
		require.True(t, ok, tt.category)
		assert.Equal(t, tt.pipeline, got)
	}

	_, ok := pipelines.Lookup("家电")
	assert.False(t, ok)
	assert.Len(t, pipelines.Categories(), 5)
}

func TestRecognizerCategories(t *testing.T) {
	recognizer := NewRecognizer(&fakeRunner{}, NewPipelines(map[string]string{"鞋靴": "shoe_recognizer", "箱包": "bag_recognizer"}), nil)
	assert.Equal(t, []string{"箱包", "鞋靴"}, recognizer.Categories())
}

func TestNewPipelinesCopiesTable(t *testing.T) {
	table := map[string]string{"a": "pipeline_a"}
	pipelines := NewPipelines(table)
	table["a"] = "changed"
	table["b"] = "pipeline_b"

	got, _ := pipelines.Lookup("a")
	assert.Equal(t, "pipeline_a", got)
	_, ok := pipelines.Lookup("b")
	assert.False(t, ok)
}

func TestRecognize(t *testing.T) {
	runner := &fakeRunner{output: dressOutput}
	observer := &fakeObserver{}
	recognizer := NewRecognizer(runner, DefaultPipelines(), observer)

	result, err := recognizer.Recognize(context.Background(), []byte("jpeg"), CategoryWomen)
	require.NoError(t, err)

	assert.Equal(t, []string{"female_cloth_recognizer"}, runner.calls)
	assert.Equal(t, [][]byte{[]byte("jpeg")}, runner.images)
	assert.Equal(t, []float32{0.5, 1, -2.25}, result.Embedding)
	assert.Equal(t, "dress", result.CategoryName)
	assert.Equal(t, []Property{{"color", "red"}, {"sleeve", "long"}}, result.Properties)
	assert.Equal(t, []bool{true}, observer.outcomes)
}

func TestRecognizeUnsupportedCategory(t *testing.T) {
	runner := &fakeRunner{output: dressOutput}
	recognizer := NewRecognizer(runner, DefaultPipelines(), nil)

	for _, category := range []string{"", "家电", "women"} {
		_, err := recognizer.Recognize(context.Background(), []byte("jpeg"), category)
		assert.ErrorIs(t, err, ErrNotSupported)
		assert.False(t, recognizer.Supports(category))
	}
	assert.Empty(t, runner.calls, "unsupported categories must not reach a pipeline")
}

func TestRecognizeFailures(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
	}{
		{name: "runner error", err: errors.New("connection reset")},
		{name: "malformed json", output: `{"result": `},
		{name: "missing result", output: `{"emb": [1]}`},
		{name: "missing emb", output: `{"result": {"categoryName": "dress"}}`},
		{name: "emb not array", output: `{"result": {"emb": "1,2"}}`},
		{name: "emb not numeric", output: `{"result": {"emb": [1, "x"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observer := &fakeObserver{}
			recognizer := NewRecognizer(&fakeRunner{output: tt.output, err: tt.err}, DefaultPipelines(), observer)

			_, err := recognizer.Recognize(context.Background(), []byte("jpeg"), CategoryShoes)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNotSupported)
			assert.Equal(t, []bool{false}, observer.outcomes)
		})
	}
}

func TestAttributes(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		stored  string
		display string
	}{
		{
			name:    "single property",
			result:  Result{CategoryName: "dress", Properties: []Property{{"color", "red"}}},
			stored:  "dress color:red",
			display: "dress<br>color:red",
		},
		{
			name: "order and duplicates preserved",
			result: Result{CategoryName: "boot", Properties: []Property{
				{"material", "leather"}, {"color", "red"}, {"color", "red"},
			}},
			stored:  "boot material:leather color:red color:red",
			display: "boot<br>material:leather<br>color:red<br>color:red",
		},
		{
			name:    "no properties",
			result:  Result{CategoryName: "tote"},
			stored:  "tote ",
			display: "tote<br>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.stored, tt.result.Attributes())
			assert.Equal(t, tt.display, tt.result.DisplayAttributes())
		})
	}
}

func TestParseResultLenientFields(t *testing.T) {
	result, err := ParseResult(`{"result": {"emb": [], "properties": [{"propertyName": "size", "valueName": 42}, {"propertyName": "fit"}]}}`)
	require.NoError(t, err)

	assert.Empty(t, result.Embedding)
	assert.Equal(t, "", result.CategoryName)
	assert.Equal(t, []Property{{"size", "42"}, {"fit", ""}}, result.Properties)
}

func TestHTTPRunner(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		if r.URL.Path == "/pipelines/broken/run" {
			http.Error(w, "pipeline crashed", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(dressOutput))
	}))
	defer srv.Close()

	runner := NewHTTPRunner(srv.URL, 5*time.Second)

	out, err := runner.RunPipeline(context.Background(), "shoe_recognizer", []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Equal(t, dressOutput, out)
	assert.Equal(t, "/pipelines/shoe_recognizer/run", gotPath)
	assert.Equal(t, "application/octet-stream", gotType)
	assert.Equal(t, []byte{0xff, 0xd8}, gotBody)

	_, err = runner.RunPipeline(context.Background(), "broken", []byte{0xff})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
