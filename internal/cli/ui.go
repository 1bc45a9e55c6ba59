package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jesseduffield/asciigraph"
	"github.com/jesseduffield/gocui"
	"github.com/spf13/cobra"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open a live terminal dashboard of pocketdock-managed sandboxes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		return runDashboard(a)
	},
}

func init() {
	RootCmd.AddCommand(uiCmd)
}

// dashboard holds the rolling CPU history the sparkline view renders,
// keyed by container name.
type dashboard struct {
	a        *app
	cpuHist  map[string][]float64
	quitting bool
}

func runDashboard(a *app) error {
	g, err := gocui.NewGui(gocui.OutputNormal, false)
	if err != nil {
		return fmt.Errorf("init ui: %w", err)
	}
	defer g.Close()

	d := &dashboard{a: a, cpuHist: make(map[string][]float64)}
	g.SetManagerFunc(d.layout)

	if err := g.SetKeybinding("", 'q', gocui.ModNone, d.quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, d.quit); err != nil {
		return err
	}

	go d.poll(g)

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

func (d *dashboard) quit(g *gocui.Gui, v *gocui.View) error {
	d.quitting = true
	return gocui.ErrQuit
}

func (d *dashboard) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	if v, err := g.SetView("sandboxes", 0, 0, maxX-1, maxY/2-1, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = " sandboxes (q to quit) "
	}
	if v, err := g.SetView("cpu", 0, maxY/2, maxX-1, maxY-1, 0); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = " cpu% "
	}
	return nil
}

func (d *dashboard) poll(g *gocui.Gui) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if d.quitting {
			return
		}
		d.refresh(g)
	}
}

func (d *dashboard) refresh(g *gocui.Gui) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	items, listErr := d.a.mgr.List(ctx, "")

	var sampleName string
	var sampleCPU float64
	var haveSample bool
	if listErr == nil && len(items) > 0 {
		first := items[0]
		if h, err := d.a.mgr.Resume(ctx, first.ID); err == nil {
			if info, err := h.Info(ctx); err == nil && info.Running {
				sampleName, sampleCPU, haveSample = first.Name, info.CPUPercent, true
			}
		}
	}

	g.Update(func(g *gocui.Gui) error {
		sv, err := g.View("sandboxes")
		if err != nil {
			return nil
		}
		sv.Clear()
		if listErr != nil {
			fmt.Fprintf(sv, "list error: %v\n", listErr)
			return nil
		}
		for _, s := range items {
			id := s.ID
			if len(id) > 12 {
				id = id[:12]
			}
			fmt.Fprintf(sv, "%s  %-20s %-10s %s\n", id, s.Name, s.State, s.Image)
		}

		cv, err := g.View("cpu")
		if err != nil || !haveSample {
			return nil
		}
		cv.Clear()

		hist := append(d.cpuHist[sampleName], sampleCPU)
		if len(hist) > 60 {
			hist = hist[len(hist)-60:]
		}
		d.cpuHist[sampleName] = hist
		if len(hist) >= 2 {
			graph := asciigraph.Plot(hist, asciigraph.Height(8), asciigraph.Caption(sampleName))
			fmt.Fprintln(cv, graph)
		}
		return nil
	})
}
