package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/character-scraper/internal/model"
)

const previewLimit = 5

// writeOutput renders v as json or yaml.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unsupported output format %q (want json or yaml)", format)
	}
}

// writePreview prints the first few characters in a readable form.
func writePreview(w io.Writer, chars []model.Character) {
	fmt.Fprintf(w, "Scraped %d characters\n", len(chars))
	for i, c := range chars {
		if i == previewLimit {
			fmt.Fprintf(w, "\n... and %d more\n", len(chars)-previewLimit)
			break
		}
		fmt.Fprintf(w, "\n%d. %s\n", i+1, c.Name)
		fmt.Fprintf(w, "   URL:         %s\n", c.URL)
		fmt.Fprintf(w, "   Creator:     %s (%s)\n", c.Creator.Name, c.Creator.SiteUniqueIdentifier)
		fmt.Fprintf(w, "   Description: %s\n", truncate(c.Description, 200))
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
