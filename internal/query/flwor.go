package query

import (
	"fmt"

	"github.com/antchfx/xpath"
)

// Flwor is a restricted for/where/return query. For selects the input
// sequence, Where optionally filters it with a predicate expression,
// and Return optionally projects a child field of each surviving node.
type Flwor struct {
	For    string
	Where  string
	Return string
}

// compose validates each part independently and then builds the final
// path expression. Part-level validation rejects malformed or injected
// fragments before they can distort the composed query.
func (q Flwor) compose() (string, error) {
	if q.For == "" {
		return "", fmt.Errorf("%w: empty for clause", ErrQueryPathInvalid)
	}
	if _, err := xpath.Compile(q.For); err != nil {
		return "", fmt.Errorf("%w: for clause %q: %v", ErrQueryPathInvalid, q.For, err)
	}

	expr := q.For
	if q.Where != "" {
		if _, err := xpath.Compile("*[" + q.Where + "]"); err != nil {
			return "", fmt.Errorf("%w: where clause %q: %v", ErrQueryPathInvalid, q.Where, err)
		}
		expr += "[" + q.Where + "]"
	}
	if q.Return != "" {
		if _, err := xpath.Compile(q.Return); err != nil {
			return "", fmt.Errorf("%w: return clause %q: %v", ErrQueryPathInvalid, q.Return, err)
		}
		expr += "/" + q.Return
	}

	if _, err := xpath.Compile(expr); err != nil {
		return "", fmt.Errorf("%w: composed path %q: %v", ErrQueryPathInvalid, expr, err)
	}
	return expr, nil
}

// FlworLike evaluates q and projects the results with ToDict.
func (e *Engine) FlworLike(q Flwor) ([]map[string]any, error) {
	expr, err := q.compose()
	if err != nil {
		return nil, err
	}
	return e.ToDict(expr)
}
