package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/reactivator/pkg/component"
)

// pageField is one rendered component field.
type pageField struct {
	Name  string
	Value string
}

type pageData struct {
	Title  string
	Fields []pageField
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<dl id="fields">
{{- range .Fields}}
<dt>{{.Name}}</dt><dd data-field="{{.Name}}">{{.Value}}</dd>
{{- end}}
</dl>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function (ev) {
    var frame = JSON.parse(ev.data);
    var el = document.querySelector('[data-field="' + frame.field + '"]');
    if (el) {
      el.textContent = typeof frame.value === "string" ? frame.value : JSON.stringify(frame.value);
    }
  };
})();
</script>
</body>
</html>
`))

// handlePage renders a server-side instance. The instance is mounted with
// server semantics, so bindings read SSR state and never subscribe.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.Start(r.Context(), "reactivator.render")
	defer span.End()

	inst := s.newInstance(true)
	inst.Mount()
	fields := inst.Fields()
	names := inst.FieldNames()
	inst.Destroy()

	data := pageData{Title: s.config.Title}
	for _, name := range names {
		data.Fields = append(data.Fields, pageField{Name: name, Value: displayValue(fields[name])})
	}
	span.SetAttributes(attribute.Int("reactivator.fields", len(data.Fields)))

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("render failed", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// displayValue formats a field value the way the client script does:
// values encoding to a JSON string verbatim, everything else as JSON.
func displayValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var str string
	if data[0] == '"' && json.Unmarshal(data, &str) == nil {
		return str
	}
	return string(data)
}

// newInstance builds a component instance with the server's mixins.
func (s *Server) newInstance(server bool) *component.Instance {
	return component.New(
		component.WithServer(server),
		component.WithMixins(s.mixins...),
		component.WithLogger(s.logger),
	)
}
