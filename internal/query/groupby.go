package query

import (
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// GroupResult holds the per-group outcome of GroupBy. The aggregate
// fields are set only when an aggregate field was requested and at
// least one of its values in the group was numeric.
type GroupResult struct {
	Count int      `json:"count"`
	Sum   *float64 `json:"sum,omitempty"`
	Avg   *float64 `json:"avg,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// GroupBy groups all records by the text value of groupField in a
// single pass over the document. Records with an empty or absent group
// value are skipped. When aggregateField is non-empty, sum/avg/min/max
// are computed over its values within each group; values that are not
// numeric are skipped rather than failing the whole grouping.
func (e *Engine) GroupBy(groupField, aggregateField string) (map[string]*GroupResult, error) {
	records, err := e.Select(AllRecords())
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*GroupResult)
	values := make(map[string][]float64)

	for _, rec := range records {
		key := childText(rec, groupField)
		if key == "" {
			continue
		}

		g := groups[key]
		if g == nil {
			g = &GroupResult{}
			groups[key] = g
		}
		g.Count++

		if aggregateField == "" {
			continue
		}
		raw := childText(rec, aggregateField)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		values[key] = append(values[key], f)
	}

	for key, nums := range values {
		if len(nums) == 0 {
			continue
		}
		g := groups[key]
		total, min, max := nums[0], nums[0], nums[0]
		for _, n := range nums[1:] {
			total += n
			if n < min {
				min = n
			}
			if n > max {
				max = n
			}
		}
		avg := total / float64(len(nums))
		g.Sum, g.Avg, g.Min, g.Max = &total, &avg, &min, &max
	}

	return groups, nil
}

func childText(n *xmlquery.Node, field string) string {
	child := n.SelectElement(field)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}
