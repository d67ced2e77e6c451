package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// Query is a jq filter expression that is evaluated on the JSON
// representation of a pull request. It must evaluate to a single boolean.
type Query struct {
	query *gojq.Query
}

func NewQuery(jqQuery string) (*Query, error) {
	q, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing jq query %q failed: %w", jqQuery, err)
	}

	return &Query{query: q}, nil
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errs []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errs
		}

		if err, isErr := res.(error); isErr {
			errs = append(errs, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}

// Match evaluates the query for the pull request of the candidate.
func (q *Query) Match(ctx context.Context, c *Candidate) (bool, error) {
	var prUn any

	prJSON, err := json.Marshal(c.pr)
	if err != nil {
		return false, fmt.Errorf("marshaling pull request to json failed: %w", err)
	}

	if err := json.Unmarshal(prJSON, &prUn); err != nil {
		return false, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errs := goJQIterToSlice(q.query.RunWithContext(ctx, prUn))
	if len(errs) != 0 {
		return false, fmt.Errorf("json query returned errors, query: %q, errors: %s", q.query.String(), errString(errs))
	}

	if len(result) != 1 {
		return false, fmt.Errorf("json query returned %d results, expected 1, query: %q", len(result), q.query.String())
	}

	val, ok := result[0].(bool)
	if !ok {
		return false, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], q.query.String(),
		)
	}

	return val, nil
}

func (q *Query) String() string {
	return q.query.String()
}
