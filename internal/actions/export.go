package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

const (
	msgExportScheduled = "Data export has been scheduled. You will be notified when it is ready."
	msgExportFailed    = "Failed to export data. Please try again."
	msgNoCharts        = "No charts found to export"

	// ChartFile is the name the exported chart is saved under.
	ChartFile = "task_manager_chart.png"
)

// Export schedules a server-side data export. It reports whether the server
// accepted the request.
func (a *Actions) Export(ctx context.Context) bool {
	if err := a.api.ExportData(ctx); err != nil {
		a.log.Warn("export request failed", logx.Err(err))
		a.n.Notify("Error", msgExportFailed, toast.SeverityDanger)
		return false
	}
	a.n.Notify("Success", msgExportScheduled, toast.SeveritySuccess)
	return true
}

// ExportCharts copies the rendered chart images (*.png, by name) found in
// srcDir to outDir/ChartFile. Only the first chart is saved; when there are
// several the user is told how many were found. It returns the written path,
// or "" when nothing was written.
func (a *Actions) ExportCharts(srcDir, outDir string) string {
	charts, err := findCharts(srcDir)
	if err != nil {
		a.log.Warn("chart lookup failed", logx.String("dir", srcDir), logx.Err(err))
	}
	if len(charts) == 0 {
		a.n.Notify("Warning", msgNoCharts, toast.SeverityWarning)
		return ""
	}

	dst := filepath.Join(outDir, ChartFile)
	if err := copyFile(charts[0], dst); err != nil {
		a.log.Error("chart export failed", logx.String("src", charts[0]), logx.Err(err))
		a.n.Notify("Error", "Failed to export charts", toast.SeverityDanger)
		return ""
	}
	if len(charts) > 1 {
		a.n.Notify("Info", fmt.Sprintf("Exported %d charts. Saved the first as %s.", len(charts), ChartFile), toast.SeverityInfo)
	}
	a.log.Info("chart exported", logx.String("path", dst), logx.Int("found", len(charts)))
	return dst
}

func findCharts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func copyFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}
