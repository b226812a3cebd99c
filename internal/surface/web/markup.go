package web

import (
	"bytes"
	"html/template"

	"taskdesk/internal/toast"
)

var markup = template.Must(template.New("toast").Parse(`
{{- define "toast" -}}
<div id="{{.ID}}" class="toast align-items-center text-white bg-{{.Severity}} border-0" role="alert" aria-live="assertive" aria-atomic="true">
<div class="d-flex"><div class="toast-body">{{if .Title}}<strong>{{.Title}}:</strong> {{end}}{{.Body}}</div>
<button type="button" class="btn-close btn-close-white me-2 m-auto" data-bs-dismiss="toast" data-toast-id="{{.ID}}" aria-label="Close"></button></div>
</div>
{{- end -}}
{{- define "container" -}}
<div class="toast-container position-fixed bottom-0 end-0 p-3">
{{- range .}}{{template "toast" .}}{{end -}}
</div>
{{- end -}}
`))

// RenderToast returns the Bootstrap markup for one toast. Title and body are
// HTML-escaped.
func RenderToast(t toast.Toast) (string, error) {
	t.Severity = t.Severity.Normalize()
	var b bytes.Buffer
	if err := markup.ExecuteTemplate(&b, "toast", t); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderContainer returns the container holding ts, oldest first.
func RenderContainer(ts []toast.Toast) (string, error) {
	var b bytes.Buffer
	if err := markup.ExecuteTemplate(&b, "container", ts); err != nil {
		return "", err
	}
	return b.String(), nil
}

// page is served at "/" for a standalone browser view.
var page = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>taskdesk</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css">
</head>
<body>
<div id="toasts">{{.}}</div>
<script>
(function () {
  var root = document.getElementById("toasts");
  function container() {
    var c = root.querySelector(".toast-container");
    if (!c) {
      c = document.createElement("div");
      c.className = "toast-container position-fixed bottom-0 end-0 p-3";
      root.appendChild(c);
    }
    return c;
  }
  function showAll() {
    root.querySelectorAll(".toast").forEach(function (el) { el.classList.add("show"); });
  }
  showAll();
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/toasts/ws");
  ws.onmessage = function (ev) {
    var m = JSON.parse(ev.data);
    if (m.type === "sync") {
      root.innerHTML = m.html || "";
      showAll();
    } else if (m.type === "show") {
      if (document.getElementById(m.id)) { return; }
      container().insertAdjacentHTML("beforeend", m.html);
      var el = document.getElementById(m.id);
      if (el) { el.classList.add("show"); }
    } else if (m.type === "remove") {
      var gone = document.getElementById(m.id);
      if (gone) { gone.remove(); }
    }
  };
  root.addEventListener("click", function (ev) {
    var id = ev.target.getAttribute("data-toast-id");
    if (id && ws.readyState === WebSocket.OPEN) {
      ws.send(JSON.stringify({type: "dismiss", id: id}));
    }
  });
})();
</script>
</body>
</html>
`))
