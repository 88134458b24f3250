package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/anggasct/signalcycle"
)

// HTMLView renders the board as a self-refreshing HTML page
type HTMLView struct {
	path    string
	refresh int
	tmpl    *template.Template
	last    Board
	mutex   sync.Mutex
}

type pageData struct {
	Board
	Refresh     int
	Interactive bool
	AlertText   string
	Generated   string
}

// NewHTMLView writes the page to path on every render. An empty path keeps the
// view usable through WriteTo only. refresh is the meta refresh interval in seconds.
func NewHTMLView(path string, refresh int) *HTMLView {
	return &HTMLView{
		path:    path,
		refresh: refresh,
		tmpl:    template.Must(template.New("board").Funcs(funcMap).Parse(boardTemplate)),
	}
}

var funcMap = template.FuncMap{
	"lower": func(s signalcycle.Status) string {
		return strings.ToLower(s.String())
	},
	"seconds": func(n int) string {
		return fmt.Sprintf("%ds", n)
	},
}

// Render implements View
func (v *HTMLView) Render(board Board) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.last = board
	return v.flush()
}

// ShowError re-renders the last board with the message
func (v *HTMLView) ShowError(message string) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.last.Error = message
	_ = v.flush()
}

// ShowEmergency re-renders the last board with an alert for signal
func (v *HTMLView) ShowEmergency(signal signalcycle.Signal) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	now := v.last.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	v.last.Alert = &Alert{
		SignalID:   signal.ID,
		SignalName: signal.Name,
		Expires:    now.Add(signalcycle.EmergencyAlertDuration),
	}
	_ = v.flush()
}

// WriteTo executes the template for board. Interactive pages carry the control forms.
func (v *HTMLView) WriteTo(w io.Writer, board Board, interactive bool) error {
	data := pageData{
		Board:       board,
		Refresh:     v.refresh,
		Interactive: interactive,
		Generated:   board.UpdatedAt.Format("15:04:05"),
	}
	if board.Alert.Active(board.UpdatedAt) {
		data.AlertText = board.Alert.Message()
	}
	if err := v.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render board: %w", err)
	}
	return nil
}

// flush writes the last board to disk. Callers hold v.mutex so writes land in render order.
func (v *HTMLView) flush() error {
	if v.path == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := v.WriteTo(&buf, v.last, false); err != nil {
		return err
	}
	if err := atomic.WriteFile(v.path, &buf); err != nil {
		return fmt.Errorf("write board %s: %w", v.path, err)
	}
	return nil
}

const boardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8"/>
  {{- if gt .Refresh 0}}
  <meta http-equiv="refresh" content="{{.Refresh}}">
  {{- end}}
  <title>Traffic Signal Board</title>
  <style>
    body { font-family: Arial, sans-serif; max-width: 960px; margin: 0 auto; padding: 20px; background: #121212; color: #e0e0e0; }
    .grid { display: grid; grid-template-columns: repeat(2, 1fr); gap: 16px; }
    .card { border: 1px solid #333; border-radius: 6px; padding: 12px; background: #1e1e1e; }
    .card.emergency { border-color: #a52a2a; background: #3d1a1a; }
    .light { display: inline-block; width: 18px; height: 18px; border-radius: 50%; background: #444; vertical-align: middle; }
    .light.green { background: #2ecc71; } .light.yellow { background: #f1c40f; } .light.red { background: #e74c3c; }
    .banner { padding: 10px; border-radius: 5px; margin-bottom: 12px; }
    .banner.alert { background: #a52a2a; color: #fff; font-weight: bold; }
    .banner.error { background: #5a1f1f; }
    .meta { color: #888; font-size: 0.85em; }
    img { max-width: 100%; margin-top: 8px; }
  </style>
</head>
<body>
  <h1>Traffic Signal Board</h1>
  <p class="meta">
    {{if .State.Running}}Running{{else}}Stopped{{end}} · phase {{.Phase}} · total time {{seconds .State.TotalTime}}
    {{- if .AmbulancePriority}} · ambulance priority{{end}} · updated {{.Generated}}
  </p>
  {{- if .AlertText}}
  <div class="banner alert" id="emergency-alert">{{.AlertText}}</div>
  {{- end}}
  {{- if .Error}}
  <div class="banner error" id="error">{{.Error}}</div>
  {{- end}}
  {{- if .Interactive}}
  <form method="post" action="/api/toggle" style="display:inline">
    <button type="submit" id="toggle">{{if .State.Running}}Stop Simulation{{else}}Start Simulation{{end}}</button>
  </form>
  <form method="post" action="/api/total-time" style="display:inline">
    <input type="number" name="value" min="1" value="{{.State.TotalTime}}"/>
    <button type="submit">Set total time</button>
  </form>
  {{- end}}
  <div class="grid">
  {{- range .Signals}}
    <div class="card{{if .AmbulanceDetected}} emergency{{end}}" data-signal-id="{{.ID}}">
      <h3><span class="light {{lower .Status}}"></span> {{.Name}}</h3>
      <div>Status: {{.Status}}</div>
      <div>Vehicles: {{.VehicleCount}}</div>
      <div>Timing: {{seconds .Timing}}</div>
      {{- if .AmbulanceDetected}}
      <div><strong>Ambulance detected</strong></div>
      {{- end}}
      {{- if .Image}}
      <img class="traffic-image" src="{{.Image}}" alt="{{.Name}}"/>
      {{- end}}
      {{- if $.Interactive}}
      <form method="post" action="/api/upload/{{.ID}}" enctype="multipart/form-data">
        <input type="file" name="file" accept="image/*"/>
        <button type="submit">Upload</button>
      </form>
      {{- end}}
    </div>
  {{- end}}
  </div>
</body>
</html>
`
