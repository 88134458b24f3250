package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/anggasct/signalcycle"
)

// TerminalView prints the board as one coloured line per signal
type TerminalView struct {
	out     io.Writer
	palette map[signalcycle.Status]*color.Color
	alert   *color.Color
	failure *color.Color
	dim     *color.Color
	mutex   sync.Mutex
}

// NewTerminalView writes to out. With noColor set, plain text is produced.
func NewTerminalView(out io.Writer, noColor bool) *TerminalView {
	v := &TerminalView{
		out: out,
		palette: map[signalcycle.Status]*color.Color{
			signalcycle.StatusWaiting: color.New(color.FgHiBlack),
			signalcycle.StatusRed:     color.New(color.FgRed, color.Bold),
			signalcycle.StatusYellow:  color.New(color.FgYellow, color.Bold),
			signalcycle.StatusGreen:   color.New(color.FgGreen, color.Bold),
		},
		alert:   color.New(color.FgWhite, color.BgRed, color.Bold),
		failure: color.New(color.FgRed),
		dim:     color.New(color.Faint),
	}
	if noColor {
		for _, c := range v.palette {
			c.DisableColor()
		}
		v.alert.DisableColor()
		v.failure.DisableColor()
		v.dim.DisableColor()
	}
	return v
}

// Render implements View
func (v *TerminalView) Render(board Board) error {
	if v.out == nil {
		return nil
	}

	var b strings.Builder
	state := "stopped"
	if board.State.Running {
		state = "running"
	}
	v.dim.Fprintf(&b, "cycle %s  phase %s  total %ds", state, board.Phase, board.State.TotalTime)
	if board.State.EmergencyMode {
		b.WriteString("  ")
		v.alert.Fprint(&b, " EMERGENCY ")
	}
	b.WriteString("\n")

	for _, sig := range board.Signals {
		v.writeSignal(&b, sig)
	}

	if board.Alert.Active(board.UpdatedAt) {
		v.alert.Fprintf(&b, " %s ", board.Alert.Message())
		b.WriteString("\n")
	}
	if board.Error != "" {
		v.failure.Fprintf(&b, "error: %s\n", board.Error)
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	_, err := io.WriteString(v.out, b.String())
	return err
}

func (v *TerminalView) writeSignal(b *strings.Builder, sig signalcycle.Signal) {
	light := v.palette[sig.Status]
	if light == nil {
		light = v.palette[signalcycle.StatusWaiting]
	}

	light.Fprintf(b, "● %-7s", strings.ToUpper(sig.Status.String()))
	fmt.Fprintf(b, " %-13s vehicles %3d  timing %3ds", sig.Name, sig.VehicleCount, sig.Timing)
	if sig.AmbulanceDetected {
		b.WriteString("  ")
		v.alert.Fprint(b, " AMBULANCE ")
	}
	b.WriteString("\n")
}

// ShowError implements View
func (v *TerminalView) ShowError(message string) {
	if v.out == nil {
		return
	}
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.failure.Fprintf(v.out, "error: %s\n", message)
}

// ShowEmergency implements View
func (v *TerminalView) ShowEmergency(signal signalcycle.Signal) {
	if v.out == nil {
		return
	}
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.alert.Fprintf(v.out, " Ambulance detected at %s! Priority given. ", signal.Name)
	fmt.Fprintln(v.out)
}
