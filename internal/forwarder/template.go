package forwarder

import "strings"

// TemplateContext supplies the placeholder values spec §4.4 allows in a
// forwarded header template.
type TemplateContext struct {
	ClientIP    string
	Emitter     string
	ScenarioID  string
	APIKey      string
	Method      string
	Path        string
	ContentType string
}

var placeholderOrder = []string{
	"{client_ip}", "{emitter}", "{scenario_id}", "{api_key}", "{method}", "{path}", "{content_type}",
}

// ExpandHeaders renders a header name->value-template map into concrete
// HTTP header values, expanding placeholders from ctx. A template whose
// referenced field is empty keeps the literal placeholder text, per
// spec §4.4 ("missing placeholders are left literal").
func ExpandHeaders(templates map[string]string, ctx TemplateContext) map[string]string {
	fields := map[string]string{
		"{client_ip}":    ctx.ClientIP,
		"{emitter}":      ctx.Emitter,
		"{scenario_id}":  ctx.ScenarioID,
		"{api_key}":      ctx.APIKey,
		"{method}":       ctx.Method,
		"{path}":         ctx.Path,
		"{content_type}": ctx.ContentType,
	}

	out := make(map[string]string, len(templates))
	for name, tmpl := range templates {
		val := tmpl
		for _, ph := range placeholderOrder {
			if !strings.Contains(val, ph) {
				continue
			}
			if fields[ph] == "" {
				continue // leave literal
			}
			val = strings.ReplaceAll(val, ph, fields[ph])
		}
		out[name] = val
	}
	return out
}
