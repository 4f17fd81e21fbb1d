// Package errorpage renders the self-contained diagnostic document shown when
// the backend fails to start or never becomes healthy. All user-controlled
// content (the failure message and captured log lines) flows through
// html/template's contextual escaping.
package errorpage

import (
	"html/template"
	"strings"
)

// Placeholder substituted when no log output has been captured yet.
const emptyLogPlaceholder = "No log output available."

var page = template.Must(template.New("diagnostic").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    background: #16181d;
    color: #d8dade;
    font-family: -apple-system, "Segoe UI", sans-serif;
    display: flex;
    align-items: center;
    justify-content: center;
    min-height: 100vh;
    padding: 2rem;
  }
  .panel { max-width: 640px; width: 100%; }
  h1 { color: #e05c5c; font-size: 1.4rem; margin-bottom: 1rem; }
  .message { color: #9aa0a8; margin-bottom: 1.5rem; line-height: 1.5; }
  pre.logs {
    background: #0d0e11;
    border: 1px solid #2c2f36;
    border-radius: 6px;
    padding: 1rem;
    font-family: "SF Mono", monospace;
    font-size: 0.75rem;
    line-height: 1.6;
    white-space: pre-wrap;
    word-break: break-all;
    max-height: 300px;
    overflow-y: auto;
    margin-bottom: 1.5rem;
    color: #8a8f97;
  }
  button {
    background: #2c2f36;
    color: #d8dade;
    border: 1px solid #4a4e57;
    border-radius: 6px;
    padding: 0.6rem 1.5rem;
    font-size: 0.9rem;
    cursor: pointer;
  }
  button:hover { background: #3a3e46; }
</style>
</head>
<body>
  <div class="panel">
    <h1>Backend failed to start</h1>
    <p class="message">{{.Message}}</p>
    <pre class="logs">{{.Logs}}</pre>
    <form method="post" action="{{.RestartURL}}">
      <button type="submit">Restart backend</button>
    </form>
  </div>
</body>
</html>`))

type pageData struct {
	Message    string
	Logs       string
	RestartURL string
}

// Render produces the diagnostic document for message and logLines, with the
// restart control posting to restartURL. Log lines are joined with newlines;
// an empty tail is replaced by a fixed placeholder.
func Render(message string, logLines []string, restartURL string) string {
	logs := strings.Join(logLines, "\n")
	if logs == "" {
		logs = emptyLogPlaceholder
	}
	var b strings.Builder
	// The template is static and the data is plain strings; Execute cannot fail.
	_ = page.Execute(&b, pageData{Message: message, Logs: logs, RestartURL: restartURL})
	return b.String()
}
