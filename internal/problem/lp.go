package problem

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// maxLineLength keeps LP lines under the 255 character limit of common
// readers.
const maxLineLength = 200

// SanitizeName maps an identifier onto the characters the CPLEX LP format
// accepts. Brackets become parentheses; other invalid characters become
// underscores.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '[':
			b.WriteRune('(')
		case r == ']':
			b.WriteRune(')')
		case strings.ContainsRune("!\"#$%&()/,.;?@_`'{}|~", r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := b.String()
	if s == "" || isDigit(s[0]) || s[0] == '.' || looksExponent(s) {
		s = "_" + s
	}
	return s
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// looksExponent reports names a reader would take for a number in
// exponent notation.
func looksExponent(s string) bool {
	if len(s) < 2 || (s[0] != 'e' && s[0] != 'E') {
		return false
	}
	return isDigit(s[1]) || s[1] == 'e' || s[1] == 'E'
}

type lpNames struct {
	byName map[string]string
	owner  map[string]string
}

func (n *lpNames) add(name string) error {
	s := SanitizeName(name)
	if prev, ok := n.owner[s]; ok && prev != name {
		return fmt.Errorf("names %q and %q collide as %q in LP output", prev, name, s)
	}
	n.owner[s] = name
	n.byName[name] = s
	return nil
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type lpWriter struct {
	w    *bufio.Writer
	line int
}

func (lw *lpWriter) write(s string) {
	if lw.line+len(s) > maxLineLength {
		lw.w.WriteString("\n   ")
		lw.line = 3
	}
	lw.w.WriteString(s)
	lw.line += len(s)
}

func (lw *lpWriter) newline() {
	lw.w.WriteString("\n")
	lw.line = 0
}

func (lw *lpWriter) expr(terms []Term, names map[string]string) {
	for i, t := range terms {
		coef := t.Coef
		sign := "+"
		if coef < 0 {
			sign = "-"
			coef = -coef
		}
		switch {
		case i == 0 && sign == "+":
			lw.write(fmt.Sprintf(" %s %s", formatNumber(coef), names[t.Var]))
		default:
			lw.write(fmt.Sprintf(" %s %s %s", sign, formatNumber(coef), names[t.Var]))
		}
	}
}

// WriteLP renders the problem in CPLEX LP format.
func (p *Problem) WriteLP(w io.Writer) error {
	names := &lpNames{byName: make(map[string]string), owner: make(map[string]string)}
	for _, v := range p.Variables {
		if err := names.add(v.Name); err != nil {
			return err
		}
	}
	rowNames := &lpNames{byName: make(map[string]string), owner: make(map[string]string)}
	for _, c := range p.Constraints {
		if err := rowNames.add(c.Name); err != nil {
			return err
		}
	}

	lw := &lpWriter{w: bufio.NewWriter(w)}
	fmt.Fprintf(lw.w, "\\ Problem: %s\n", p.Name)
	if p.Objective.Constant != 0 {
		fmt.Fprintf(lw.w, "\\ Objective constant: %s\n", formatNumber(p.Objective.Constant))
	}

	lw.w.WriteString("Minimize\n")
	lw.write(" obj:")
	switch {
	case len(p.Objective.Terms) > 0:
		lw.expr(p.Objective.Terms, names.byName)
	case len(p.Variables) > 0:
		lw.write(" 0 " + names.byName[p.Variables[0].Name])
	}
	lw.newline()

	lw.w.WriteString("Subject To\n")
	for _, c := range p.Constraints {
		lw.write(" " + rowNames.byName[c.Name] + ":")
		lw.expr(c.Terms, names.byName)
		lw.write(fmt.Sprintf(" %s %s", c.Sense, formatNumber(c.RHS)))
		lw.newline()
	}

	lw.w.WriteString("Bounds\n")
	var integers []string
	for _, v := range p.Variables {
		name := names.byName[v.Name]
		switch {
		case v.Upper != nil:
			fmt.Fprintf(lw.w, " %s <= %s <= %s\n", formatNumber(v.Lower), name, formatNumber(*v.Upper))
		case v.Lower != 0:
			fmt.Fprintf(lw.w, " %s >= %s\n", name, formatNumber(v.Lower))
		}
		if v.Integer {
			integers = append(integers, name)
		}
	}
	if len(integers) > 0 {
		lw.w.WriteString("General\n")
		for _, name := range integers {
			fmt.Fprintf(lw.w, " %s\n", name)
		}
	}
	lw.w.WriteString("End\n")
	return lw.w.Flush()
}

// WriteJSON renders the problem as indented JSON.
func (p *Problem) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// ReadJSON decodes a problem written by WriteJSON and checks its references.
func ReadJSON(r io.Reader) (*Problem, error) {
	var raw Problem
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode problem: %w", err)
	}
	p := New(raw.Name)
	for _, v := range raw.Variables {
		if err := p.AddVariable(v); err != nil {
			return nil, err
		}
	}
	for _, c := range raw.Constraints {
		if err := p.AddConstraint(c); err != nil {
			return nil, err
		}
	}
	if err := p.AddObjective(raw.Objective.Terms, raw.Objective.Constant); err != nil {
		return nil, err
	}
	return p, nil
}
