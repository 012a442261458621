package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/domain/status"
	"github.com/corey/doclink/internal/ports"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// formatHealth formats a HealthResult for terminal display.
func formatHealth(h *socket.HealthResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ doclink daemon%s\n", colorBold, colorReset))
	sb.WriteString(fmt.Sprintf("  Status:     %s%s%s\n", colorGreen, h.Status, colorReset))
	sb.WriteString(fmt.Sprintf("  Samples:    %d\n", h.Samples))
	sb.WriteString(fmt.Sprintf("  Documents:  %d\n", h.Documents))
	sb.WriteString(fmt.Sprintf("  Groups:     %d\n", h.Groups))
	sb.WriteString(fmt.Sprintf("  Uptime:     %s\n", h.Uptime))
	return sb.String()
}

// formatLastStatus formats the status file left by a stopped daemon.
func formatLastStatus(sd *status.StatusData) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ doclink daemon is not running%s %s(last status %s)%s\n",
		colorBold, colorReset, colorGray, sd.UpdatedAt.Format("2006-01-02 15:04:05"), colorReset))
	sb.WriteString(fmt.Sprintf("  Samples:    %d\n", sd.Samples))
	sb.WriteString(fmt.Sprintf("  Documents:  %d\n", sd.Documents))
	sb.WriteString(fmt.Sprintf("  Groups:     %d (%d members)\n", sd.Groups, sd.Members))
	sb.WriteString(fmt.Sprintf("  Batches:    %d (%d ok, %d failed records)\n",
		sd.Batches, sd.RecordsOK, sd.RecordsFailed))
	if len(sd.TopGroups) > 0 {
		sb.WriteString(fmt.Sprintf("  Largest:    %s\n", strings.Join(sd.TopGroups, ", ")))
	}
	return sb.String()
}

// formatStats formats a StatsResult for terminal display.
func formatStats(s *socket.StatsResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ doclink stats%s\n", colorBold, colorReset))
	sb.WriteString(fmt.Sprintf("  Samples:     %d\n", s.Samples))
	sb.WriteString(fmt.Sprintf("  Documents:   %d\n", s.Documents))
	sb.WriteString(fmt.Sprintf("  Groups:      %d\n", s.Groups))
	sb.WriteString(fmt.Sprintf("  Members:     %d\n", s.Members))
	sb.WriteString(fmt.Sprintf("  Batches:     %d\n", s.Batches))
	sb.WriteString(fmt.Sprintf("  Records:     %s%d ok%s, ", colorGreen, s.RecordsOK, colorReset))
	if s.RecordsFailed > 0 {
		sb.WriteString(fmt.Sprintf("%s%d failed%s\n", colorRed, s.RecordsFailed, colorReset))
	} else {
		sb.WriteString("0 failed\n")
	}
	sb.WriteString(fmt.Sprintf("  Spool files: %d\n", s.SpoolFiles))
	sb.WriteString(fmt.Sprintf("  Storage:     %s", s.StorageDriver))
	if s.StoragePath != "" {
		sb.WriteString(fmt.Sprintf(" %s(%s)%s", colorGray, s.StoragePath, colorReset))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Uptime:      %ds\n", s.UptimeSeconds))
	return sb.String()
}

// formatBatch formats a one-line summary of a batch result.
func formatBatch(r *ports.BatchResult) string {
	color := colorGreen
	if r.Failed > 0 {
		color = colorRed
	}
	line := fmt.Sprintf("%s⚡ batch %s%s │ %d records │ %s%d ok, %d failed%s",
		colorBold, shortID(r.BatchID), colorReset, r.Total, color, r.Succeeded, r.Failed, colorReset)
	for _, o := range r.Records {
		if o.Status != ports.StatusOK {
			line += fmt.Sprintf("\n  %s%s%s: %s%s%s %s", colorCyan, o.ID, colorReset, colorYellow, o.Status, colorReset, o.Error)
		}
	}
	return line + "\n"
}

// formatSamples lists sample ids with their descriptions.
func formatSamples(samples []ports.SampleRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d samples%s\n", colorBold, len(samples), colorReset))
	for _, s := range samples {
		desc, _ := json.Marshal(s.Description)
		sb.WriteString(fmt.Sprintf("  %s%s%s  %s%s%s\n", colorCyan, s.ID, colorReset, colorGray, desc, colorReset))
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// writeJSON pretty-prints v.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
