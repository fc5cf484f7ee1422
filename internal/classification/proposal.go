package classification

import (
	"encoding/json"
	"strings"

	"docket/internal/queue"
)

// maxTags caps how many tags a single model response may attach.
const maxTags = 10

// proposal is the JSON shape the model is asked to produce.
type proposal struct {
	Title         string            `json:"title"`
	Correspondent string            `json:"correspondent"`
	DocumentType  string            `json:"document_type"`
	Tags          []string          `json:"tags"`
	CustomFields  map[string]string `json:"custom_fields"`
}

// normalize trims every field, drops empty or duplicate tags, and enforces
// the tag cap. Model output is untrusted and frequently messy.
func (p *proposal) normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Correspondent = strings.TrimSpace(p.Correspondent)
	p.DocumentType = strings.TrimSpace(p.DocumentType)

	seen := make(map[string]struct{}, len(p.Tags))
	cleaned := make([]string, 0, len(p.Tags))
	for _, tag := range p.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, tag)
		if len(cleaned) == maxTags {
			break
		}
	}
	p.Tags = cleaned
}

func setCustomFields(doc *queue.Document, fields map[string]string) error {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	doc.CustomFieldsJSON = string(encoded)
	return nil
}
