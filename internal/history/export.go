package history

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatParquet Format = "parquet"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatParquet:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json, yaml or parquet)", s)
}

// Row is the flattened form of a record used for columnar export.
type Row struct {
	ID        string   `parquet:"id"`
	Title     string   `parquet:"title"`
	CreatedAt string   `parquet:"created_at"`
	UpdatedAt string   `parquet:"updated_at"`
	Status    string   `parquet:"status"`
	TaskID    string   `parquet:"task_id"`
	PageCount int      `parquet:"page_count"`
	Outline   string   `parquet:"outline"`
	Generated []string `parquet:"generated,list"`
	Thumbnail string   `parquet:"thumbnail"`
}

func toRow(r Record) Row {
	return Row{
		ID:        r.ID,
		Title:     r.Title,
		CreatedAt: formatTime(r.CreatedAt),
		UpdatedAt: formatTime(r.UpdatedAt),
		Status:    string(r.Status),
		TaskID:    r.TaskID,
		PageCount: r.PageCount(),
		Outline:   r.Outline.Raw,
		Generated: r.Generated,
		Thumbnail: r.Thumbnail,
	}
}

// Export writes records to w in the given format.
func Export(w io.Writer, format Format, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatParquet:
		rows := make([]Row, len(records))
		for i, r := range records {
			rows[i] = toRow(r)
		}
		if err := parquet.Write(w, rows); err != nil {
			return fmt.Errorf("write parquet: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown export format %q", format)
}
