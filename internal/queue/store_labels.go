package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// DefaultTagColor is assigned to tags created by the classifier.
const DefaultTagColor = "#3b82f6"

type labelTable string

const (
	tableTags           labelTable = "tags"
	tableCorrespondents labelTable = "correspondents"
	tableDocumentTypes  labelTable = "document_types"
)

// Slugify normalizes a label name for case-insensitive matching: lowercase,
// alphanumerics kept, runs of anything else collapsed to single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// FindOrCreateTag resolves a tag by slug, creating it with the default color
// when absent. Existing labels keep their original display name.
func (s *Store) FindOrCreateTag(ctx context.Context, name string) (*Label, error) {
	return s.findOrCreateLabel(ctx, tableTags, name, DefaultTagColor)
}

// FindOrCreateCorrespondent resolves a correspondent by slug, creating it when absent.
func (s *Store) FindOrCreateCorrespondent(ctx context.Context, name string) (*Label, error) {
	return s.findOrCreateLabel(ctx, tableCorrespondents, name, "")
}

// FindOrCreateDocumentType resolves a document type by slug, creating it when absent.
func (s *Store) FindOrCreateDocumentType(ctx context.Context, name string) (*Label, error) {
	return s.findOrCreateLabel(ctx, tableDocumentTypes, name, "")
}

func (s *Store) findOrCreateLabel(ctx context.Context, table labelTable, name, color string) (*Label, error) {
	name = strings.TrimSpace(name)
	slug := Slugify(name)
	if slug == "" {
		return nil, errors.New("label name is empty")
	}

	if label, err := s.labelBySlug(ctx, table, slug); err != nil {
		return nil, err
	} else if label != nil {
		return label, nil
	}

	now := time.Now().UTC()
	var (
		res sql.Result
		err error
	)
	if table == tableTags {
		res, err = s.execWithRetry(
			ctx,
			`INSERT INTO tags (slug, name, color, created_at) VALUES (?, ?, ?, ?)
             ON CONFLICT(slug) DO NOTHING`,
			slug, name, color, now.Format(time.RFC3339Nano),
		)
	} else {
		res, err = s.execWithRetry(
			ctx,
			`INSERT INTO `+string(table)+` (slug, name, created_at) VALUES (?, ?, ?)
             ON CONFLICT(slug) DO NOTHING`,
			slug, name, now.Format(time.RFC3339Nano),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		// Lost a race with a concurrent insert; the row exists now.
		return s.labelBySlug(ctx, table, slug)
	}

	return s.labelBySlug(ctx, table, slug)
}

func (s *Store) labelBySlug(ctx context.Context, table labelTable, slug string) (*Label, error) {
	query := `SELECT id, slug, name, '' AS color, created_at FROM ` + string(table) + ` WHERE slug = ?`
	if table == tableTags {
		query = `SELECT id, slug, name, COALESCE(color, ''), created_at FROM tags WHERE slug = ?`
	}
	row := s.db.QueryRowContext(ctx, query, slug)
	label, err := scanLabel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s by slug: %w", table, err)
	}
	return label, nil
}

// Tags returns all tags ordered by name.
func (s *Store) Tags(ctx context.Context) ([]*Label, error) {
	return s.listLabels(ctx, tableTags)
}

// Correspondents returns all correspondents ordered by name.
func (s *Store) Correspondents(ctx context.Context) ([]*Label, error) {
	return s.listLabels(ctx, tableCorrespondents)
}

// DocumentTypes returns all document types ordered by name.
func (s *Store) DocumentTypes(ctx context.Context) ([]*Label, error) {
	return s.listLabels(ctx, tableDocumentTypes)
}

func (s *Store) listLabels(ctx context.Context, table labelTable) ([]*Label, error) {
	query := `SELECT id, slug, name, '' AS color, created_at FROM ` + string(table) + ` ORDER BY name`
	if table == tableTags {
		query = `SELECT id, slug, name, COALESCE(color, ''), created_at FROM tags ORDER BY name`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var labels []*Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// SetDocumentTags replaces the tag assignments for a document.
func (s *Store) SetDocumentTags(ctx context.Context, documentID string, tagIDs []int64) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM document_tags WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clear document tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if err := s.execWithoutResultRetry(
			ctx,
			`INSERT OR IGNORE INTO document_tags (document_id, tag_id) VALUES (?, ?)`,
			documentID, tagID,
		); err != nil {
			return fmt.Errorf("assign document tag: %w", err)
		}
	}
	return nil
}

// DocumentTags returns the tags assigned to a document ordered by name.
func (s *Store) DocumentTags(ctx context.Context, documentID string) ([]*Label, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT t.id, t.slug, t.name, COALESCE(t.color, ''), t.created_at
         FROM tags t
         JOIN document_tags dt ON dt.tag_id = t.id
         WHERE dt.document_id = ?
         ORDER BY t.name`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("document tags: %w", err)
	}
	defer rows.Close()

	var labels []*Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func scanLabel(scanner interface{ Scan(dest ...any) error }) (*Label, error) {
	var (
		label      Label
		createdRaw string
	)
	if err := scanner.Scan(&label.ID, &label.Slug, &label.Name, &label.Color, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		label.CreatedAt = created
	}
	return &label, nil
}
