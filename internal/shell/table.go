package shell

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	ftp "github.com/gonzalop/ftpjail"
)

// renderEntries prints a LIST result as a table.
func renderEntries(w io.Writer, entries []*ftp.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Directory is empty")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.MaxWidth = 0
		cfg.Header.Alignment.Global = tw.AlignLeft
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	table.Header("Name", "Type", "Size", "Mode")

	for _, e := range entries {
		name, size := e.Name, formatSize(e.Size)
		if e.IsDir() {
			name += "/"
			size = "-"
		}
		if err := table.Append([]string{name, e.Type, size, e.Mode.String()}); err != nil {
			return err
		}
	}
	return table.Render()
}

// formatSize formats a byte count in human-readable form.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
