package recognition

import "sort"

// Top-level catalog categories accepted by the recognizers.
const (
	CategoryWomen    = "女装"
	CategoryMen      = "男装"
	CategoryChildren = "童装"
	CategoryShoes    = "鞋靴"
	CategoryBags     = "箱包"
)

// Pipelines maps a top-level category to the recognition pipeline that
// handles it. The zero value recognizes nothing; use DefaultPipelines or
// NewPipelines. A Pipelines value is never mutated after construction.
type Pipelines struct {
	byCategory map[string]string
}

// NewPipelines copies the given table.
func NewPipelines(table map[string]string) Pipelines {
	byCategory := make(map[string]string, len(table))
	for category, pipeline := range table {
		byCategory[category] = pipeline
	}
	return Pipelines{byCategory: byCategory}
}

// DefaultPipelines returns the table of the deployed recognizers.
func DefaultPipelines() Pipelines {
	return NewPipelines(map[string]string{
		CategoryWomen:    "female_cloth_recognizer",
		CategoryMen:      "male_cloth_recognizer",
		CategoryChildren: "child_cloth_recognizer",
		CategoryShoes:    "shoe_recognizer",
		CategoryBags:     "bag_recognizer",
	})
}

// Lookup returns the pipeline for category.
func (p Pipelines) Lookup(category string) (string, bool) {
	pipeline, ok := p.byCategory[category]
	return pipeline, ok
}

// Categories lists the supported categories in a stable order.
func (p Pipelines) Categories() []string {
	categories := make([]string, 0, len(p.byCategory))
	for category := range p.byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}
