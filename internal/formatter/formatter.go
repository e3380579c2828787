// package formatter renders a playlist and its tracks as CSV, Markdown or plain text.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/splitify/internal/shared"
	"github.com/desertthunder/splitify/internal/spotify"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// Formats lists the supported encodings.
func Formats() []Format {
	return []Format{FormatCSV, FormatMarkdown, FormatText}
}

// ParseFormat accepts a format name, case-insensitively. "markdown" and "text" are aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Export is a playlist together with its playable tracks.
type Export struct {
	Playlist spotify.Playlist
	Tracks   []spotify.Track
}

// Render encodes export in format f.
func Render(export *Export, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ToCSV(export)
	case FormatMarkdown:
		return ToMarkdown(export), nil
	case FormatText:
		return ToText(export), nil
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, f)
	}
}

// ToCSV converts an Export to CSV with columns: ID, Title, Artist, Album, Duration, ISRC
func ToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "ISRC"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		record := []string{
			track.ID,
			track.Name,
			strings.Join(track.ArtistNames(), ", "),
			track.Album.Name,
			strconv.Itoa(track.DurationMS / 1000),
			track.ExternalIDs.ISRC,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToMarkdown converts an Export to a Markdown document.
func ToMarkdown(export *Export) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}
	if owner := export.Playlist.Owner.DisplayName; owner != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", owner)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", visibility(export.Playlist.Public))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album.Name != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album.Name)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1,
			strings.Join(track.ArtistNames(), ", "), track.Name, albumPart, FormatDuration(track.DurationMS))
	}

	return buf.Bytes()
}

// ToText converts an Export to plain text.
func ToText(export *Export) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, strings.Join(track.ArtistNames(), ", "), track.Name)
	}

	return buf.Bytes()
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

// Write renders export and writes it to w.
func Write(w io.Writer, export *Export, f Format) error {
	data, err := Render(export, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// WriteFile renders export into path, creating parent directories.
//
// An empty path defaults to {playlist.ID}_tracks{ext} in the working directory.
func WriteFile(export *Export, f Format, path string) (string, error) {
	if path == "" {
		path = export.Playlist.ID + "_tracks" + f.Ext()
	}

	data, err := Render(export, f)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
