package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// ResultDraft is one result item as submitted by the author.
type ResultDraft struct {
	// ID is the stable item identifier. Empty for items never saved before.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// Content is the past-tense result statement.
	Content string `json:"content" yaml:"content"`
	// CompletionDate must not be later than the session deadline.
	CompletionDate *Date `json:"completion_date,omitempty" yaml:"completion_date,omitempty"`
	// ControlLevel is optional classification metadata.
	ControlLevel ControlLevel `json:"control_level,omitempty" yaml:"control_level,omitempty"`
}

// Draft is the submitted content of one section. Context and Purpose use
// Text; Results uses Results.
type Draft struct {
	Text    string        `json:"text,omitempty" yaml:"text,omitempty"`
	Results []ResultDraft `json:"results,omitempty" yaml:"results,omitempty"`
}

// Empty reports whether the draft carries no usable content for kind.
func (d Draft) Empty(kind SectionKind) bool {
	if kind == SectionResults {
		return len(d.Results) == 0
	}
	return strings.TrimSpace(d.Text) == ""
}

// Digest fingerprints the draft for kind. Item ids are excluded so that a
// draft validated before its results were assigned ids still matches the
// same content submitted for locking.
func (d Draft) Digest(kind SectionKind) string {
	type item struct {
		Content string       `json:"c"`
		Date    string       `json:"d"`
		Control ControlLevel `json:"l"`
	}
	payload := struct {
		Kind  SectionKind `json:"k"`
		Text  string      `json:"t,omitempty"`
		Items []item      `json:"i,omitempty"`
	}{Kind: kind}

	if kind == SectionResults {
		for _, r := range d.Results {
			it := item{Content: strings.TrimSpace(r.Content), Control: r.ControlLevel}
			if r.CompletionDate != nil {
				it.Date = r.CompletionDate.String()
			}
			payload.Items = append(payload.Items, it)
		}
	} else {
		payload.Text = strings.TrimSpace(d.Text)
	}

	// Marshal of this struct cannot fail.
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
