package constraint

import "fmt"

// TemplateError reports an element a template cannot be instantiated on.
type TemplateError struct {
	Template string
	Element  string
	Detail   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q on %q: %s", e.Template, e.Element, e.Detail)
}

func fail(template, element, format string, args ...any) error {
	return &TemplateError{Template: template, Element: element, Detail: fmt.Sprintf(format, args...)}
}
