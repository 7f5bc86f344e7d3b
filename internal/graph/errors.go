package graph

import (
	"fmt"
	"strings"
)

// GraphError lists every structural problem found in a built graph.
type GraphError struct {
	Problems []string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph check failed:\n- %s", strings.Join(e.Problems, "\n- "))
}
