package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"proxyfinder/internal/domain"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatTXT  Format = "txt"
)

var ErrUnknownFormat = errors.New("export: unknown format")

var csvHeader = []string{"proxy", "is_working", "latency", "is_checked", "created_at", "updated_at", "note", "location", "error"}

// Record is the exported view of a proxy.
type Record struct {
	Proxy     string          `json:"proxy"`
	IsWorking bool            `json:"is_working"`
	Latency   float64         `json:"latency"`
	IsChecked bool            `json:"is_checked"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Note      *string         `json:"note"`
	Location  domain.Document `json:"location"`
	Error     *string         `json:"error"`
}

func NewRecord(proxy domain.Proxy) Record {
	return Record{
		Proxy:     proxy.Address,
		IsWorking: proxy.IsWorking,
		Latency:   proxy.LatencyMs,
		IsChecked: proxy.IsChecked,
		CreatedAt: proxy.CreatedAt,
		UpdatedAt: proxy.UpdatedAt,
		Note:      proxy.Note,
		Location:  proxy.Location,
		Error:     proxy.Error,
	}
}

// ParseFormat accepts an explicit format name; "" falls back to the extension of path,
// then to csv.
func ParseFormat(name, path string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		// An extension that names no format still gets csv.
		format, err := formatByName(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
		if err != nil {
			return FormatCSV, nil
		}
		return format, nil
	}

	return formatByName(name)
}

func formatByName(name string) (Format, error) {
	switch Format(name) {
	case FormatCSV, FormatJSON, FormatTXT:
		return Format(name), nil
	case "text":
		return FormatTXT, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, name)
	}
}

func Write(w io.Writer, format Format, proxies []domain.Proxy) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, proxies)
	case FormatJSON:
		return writeJSON(w, proxies)
	case FormatTXT:
		return writeTXT(w, proxies)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// WriteFile writes proxies to path, creating parent directories as needed.
func WriteFile(path string, format Format, proxies []domain.Proxy) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("export: close %s: %w", path, closeErr)
		}
	}()

	return Write(f, format, proxies)
}

func writeCSV(w io.Writer, proxies []domain.Proxy) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, proxy := range proxies {
		location := ""
		if len(proxy.Location) > 0 {
			data, err := json.Marshal(proxy.Location)
			if err != nil {
				return fmt.Errorf("export: encode location of %s: %w", proxy.Address, err)
			}
			location = string(data)
		}

		row := []string{
			proxy.Address,
			strconv.FormatBool(proxy.IsWorking),
			strconv.FormatFloat(proxy.LatencyMs, 'f', -1, 64),
			strconv.FormatBool(proxy.IsChecked),
			proxy.CreatedAt.Format(time.RFC3339),
			proxy.UpdatedAt.Format(time.RFC3339),
			proxy.NoteText(),
			location,
			proxy.ErrorText(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, proxies []domain.Proxy) error {
	records := make([]Record, len(proxies))
	for i, proxy := range proxies {
		records[i] = NewRecord(proxy)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeTXT(w io.Writer, proxies []domain.Proxy) error {
	for _, proxy := range proxies {
		if _, err := fmt.Fprintln(w, proxy.Address); err != nil {
			return err
		}
	}
	return nil
}
