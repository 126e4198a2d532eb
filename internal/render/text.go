package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Output formats accepted by Encode.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ParseFormat normalises a --output value.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Encode writes v in the given format.
func Encode(w io.Writer, v View, format string) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return WriteText(w, v)
	}
}

// WriteText writes a plain-text report of v.
func WriteText(w io.Writer, v View) error {
	tw := &errWriter{w: w}

	domain := v.Header.Domain
	if domain == "" {
		domain = "(unknown domain)"
	}
	tw.printf("%s  [%s]\n", domain, v.Header.Status)
	if v.Header.JobID != "" {
		tw.printf("Job:      %s\n", v.Header.JobID)
	}
	if !v.Header.CreatedAt.IsZero() {
		tw.printf("Scanned:  %s\n", v.Header.CreatedAt.Local().Format(time.DateTime))
	}
	if v.Header.InProgress {
		tw.printf("%s\n", InProgress)
	}
	tw.printf("\nSubdomains: %d   Open ports: %d   Technologies: %d   Screenshots: %d\n",
		v.Summary.Subdomains, v.Summary.OpenPorts, v.Summary.Technologies, v.Summary.Screenshots)

	for _, s := range v.Sections {
		tw.printf("\n== %s ==\n", s.Title)
		if s.Empty() {
			tw.printf("  %s\n", s.Placeholder)
			continue
		}
		switch s.Key {
		case SectionPorts:
			tw.printf("  %s\n", strings.Join(s.Items, "  "))
			writeBanners(tw, v.Banners)
		case SectionTechnologies:
			tw.printf("  %s\n", strings.Join(s.Items, ", "))
		default:
			for _, item := range s.Items {
				tw.printf("  - %s\n", item)
			}
		}
		if s.Note != "" {
			tw.printf("  %s\n", s.Note)
		}
	}

	tw.printf("\n== %s ==\n", v.Gallery.Title)
	if len(v.Gallery.Items) == 0 {
		tw.printf("  %s\n", v.Gallery.Placeholder)
	}
	for _, shot := range v.Gallery.Items {
		if !shot.Valid {
			tw.printf("  %-30s (unreadable image)  %s\n", shot.Host, shot.VisitURL)
			continue
		}
		tw.printf("  %-30s %s, %s  %s\n", shot.Host, mediaTypeOr(shot.MediaType), humanBytes(shot.Bytes), shot.VisitURL)
	}
	return tw.err
}

func writeBanners(tw *errWriter, banners map[int]string) {
	if len(banners) == 0 {
		return
	}
	ports := make([]int, 0, len(banners))
	for p := range banners {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	for _, p := range ports {
		tw.printf("    %5d/tcp  %s\n", p, banners[p])
	}
}

func mediaTypeOr(mt string) string {
	if mt == "" {
		return "image"
	}
	return mt
}

func humanBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// errWriter remembers the first write error so callers can print freely.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
