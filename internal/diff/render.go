package diff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Render writes a human-readable summary of a change list. Multi-line text
// values are shown as unified diffs; everything else as "from -> to".
func Render(label string, changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		from, fromOK := c.From.(string)
		to, toOK := c.To.(string)
		if fromOK && toOK && (strings.Contains(from, "\n") || strings.Contains(to, "\n")) {
			ud := difflib.UnifiedDiff{
				A:        difflib.SplitLines(from),
				B:        difflib.SplitLines(to),
				FromFile: label + "." + c.Field + " (local)",
				ToFile:   label + "." + c.Field + " (incoming)",
				Context:  2,
			}
			text, err := difflib.GetUnifiedDiffString(ud)
			if err == nil && text != "" {
				b.WriteString(text)
				if !strings.HasSuffix(text, "\n") {
					b.WriteByte('\n')
				}
				continue
			}
		}
		fmt.Fprintf(&b, "%s.%s: %s -> %s\n", label, c.Field, show(c.From), show(c.To))
	}
	return b.String()
}

func show(v any) string {
	if v == nil {
		return "(unset)"
	}
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
