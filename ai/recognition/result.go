package recognition

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fastjson"

	"github.com/hrygo/itemsearch/ai/internal/strutil"
)

const (
	// attributeSeparator joins attributes kept for substring filtering.
	attributeSeparator = " "
	// displaySeparator joins attributes rendered straight into a page.
	displaySeparator = "<br>"
)

// Property is one property/value pair reported by a recognizer.
type Property struct {
	Name  string
	Value string
}

// Result is the parsed output of a recognition pipeline run.
type Result struct {
	Embedding    []float32
	CategoryName string // leaf category
	Properties   []Property
}

// ParseResult parses the JSON document a pipeline returns:
//
//	{"result": {"emb": [...], "categoryName": "...", "properties": [{"propertyName": "...", "valueName": "..."}]}}
//
// "result" and "emb" are required. A missing leaf category or property
// list is treated as empty.
func ParseResult(raw string) (*Result, error) {
	var parser fastjson.Parser
	doc, err := parser.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed pipeline output %q", strutil.Excerpt(raw, 120))
	}

	result := doc.Get("result")
	if result == nil || result.Type() != fastjson.TypeObject {
		return nil, errors.New("pipeline output has no result object")
	}

	emb := result.Get("emb")
	if emb == nil {
		return nil, errors.New("pipeline result has no emb")
	}
	values, err := emb.Array()
	if err != nil {
		return nil, errors.Wrap(err, "pipeline emb is not an array")
	}

	parsed := &Result{
		Embedding:    make([]float32, len(values)),
		CategoryName: stringValue(result.Get("categoryName")),
	}
	for i, v := range values {
		f, err := v.Float64()
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline emb[%d] is not a number", i)
		}
		parsed.Embedding[i] = float32(f)
	}

	for _, prop := range result.GetArray("properties") {
		parsed.Properties = append(parsed.Properties, Property{
			Name:  stringValue(prop.Get("propertyName")),
			Value: stringValue(prop.Get("valueName")),
		})
	}

	return parsed, nil
}

func stringValue(v *fastjson.Value) string {
	if v == nil || v.Type() == fastjson.TypeNull {
		return ""
	}
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return v.String()
}

// Attributes is the searchable attribute string stored with an item:
// the leaf category followed by space separated name:value pairs.
func (r *Result) Attributes() string {
	return r.joinAttributes(attributeSeparator)
}

// DisplayAttributes renders the same attributes one per line for HTML.
func (r *Result) DisplayAttributes() string {
	return r.joinAttributes(displaySeparator)
}

func (r *Result) joinAttributes(sep string) string {
	pairs := make([]string, 0, len(r.Properties))
	for _, prop := range r.Properties {
		pairs = append(pairs, prop.Name+":"+prop.Value)
	}
	return r.CategoryName + sep + strings.Join(pairs, sep)
}
