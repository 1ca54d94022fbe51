package metrics

import (
	"sort"
	"strings"
)

// Labels is an unordered set of metric dimensions.
type Labels map[string]string

// canonicalKey returns a stable representation of labels for use as the series
// key: keys sorted, rendered as k="v" pairs joined by commas. {a:1,b:2} and
// {b:2,a:1} produce identical keys, and the result doubles as the label body
// of a Prometheus sample line.
func canonicalKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.Grow(len(keys) * 16)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(escapeLabelValue(labels[k]))
		b.WriteByte('"')
	}
	return b.String()
}

func escapeLabelValue(v string) string {
	if !strings.ContainsAny(v, "\\\"\n") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return r.Replace(v)
}
