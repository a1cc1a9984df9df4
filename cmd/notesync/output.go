package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"notesync/internal/domain"

	"gopkg.in/yaml.v3"
)

type noteView struct {
	ID        string           `json:"id" yaml:"id"`
	Title     string           `json:"title" yaml:"title"`
	Content   string           `json:"content" yaml:"content"`
	Color     string           `json:"color" yaml:"color"`
	Pinned    bool             `json:"pinned" yaml:"pinned"`
	UpdatedAt time.Time        `json:"updated_at" yaml:"updated_at"`
	Stats     domain.NoteStats `json:"stats" yaml:"stats"`
}

func viewOf(n domain.Note) noteView {
	return noteView{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Color:     n.Color,
		Pinned:    n.Pinned,
		UpdatedAt: time.UnixMilli(n.UpdatedAt),
		Stats:     n.Stats(),
	}
}

// encode writes v as JSON or YAML. It reports false for the table format so
// the caller prints its own layout.
func encode(v any) bool {
	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fatal("Error encoding JSON", err)
		}
		return true
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			fatal("Error encoding YAML", err)
		}
		enc.Close()
		return true
	case "table", "":
		return false
	default:
		fatal("Error", fmt.Errorf("unknown output format %q", output))
		return false
	}
}

func printNotes(notes []domain.Note) {
	views := make([]noteView, 0, len(notes))
	for _, n := range notes {
		views = append(views, viewOf(n))
	}
	if encode(views) {
		return
	}

	if len(views) == 0 {
		fmt.Println("No notes.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPIN\tTITLE\tUPDATED")
	for _, v := range views {
		pin := ""
		if v.Pinned {
			pin = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, pin, truncate(v.Title, 40), v.UpdatedAt.Format(time.DateTime))
	}
	w.Flush()
}

func printNote(n domain.Note) {
	v := viewOf(n)
	if encode(v) {
		return
	}

	pin := ""
	if v.Pinned {
		pin = " (pinned)"
	}
	fmt.Printf("%s%s\n", v.Title, pin)
	fmt.Printf("id: %s  color: %s  updated: %s\n", v.ID, v.Color, v.UpdatedAt.Format(time.DateTime))
	fmt.Printf("%d characters, %d words\n\n", v.Stats.Characters, v.Stats.Words)
	fmt.Println(v.Content)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
