// Package searchindex maintains a SQLite-backed prefilter cache over card
// content so a search query can narrow the candidate set before the exact
// searchquery matcher runs, falling back to a full scan whenever the cache
// is unavailable or a term can't be prefiltered.
package searchindex

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lexera/boardcore/internal/board"
	"github.com/lexera/boardcore/internal/searchquery"
)

//go:embed schema.sql
var schemaSQL string

// Index wraps the candidate prefilter database. A nil *Index is valid and
// behaves as "no cache": callers should fall back to a full scan.
type Index struct {
	db *sql.DB
}

// Open opens or (re)creates the prefilter database at path. On schema
// mismatch the file is recreated rather than failing permanently, matching
// the teacher's store-open recovery behavior.
func Open(path string) (*Index, error) {
	idx, err := open(path)
	if err != nil {
		if isSchemaMismatch(err) {
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, fmt.Errorf("remove incompatible search index: %w", rmErr)
			}
			return open(path)
		}
		return nil, err
	}
	return idx, nil
}

func isSchemaMismatch(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "SQL logic error")
}

func open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create search index directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize search index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	if idx == nil {
		return nil
	}
	return idx.db.Close()
}

// cardRow is one card as stored in the index, with the metadata the
// storage engine derived via searchquery.DeriveMetadata.
type cardRow struct {
	BoardID     string
	ColumnIndex int
	Kid         string
	Content     string
	Checked     bool
	BoardTitle  string
	ColumnTitle string
	Meta        searchquery.CardMetadata
}

// RebuildBoard replaces every indexed row for boardID with the given
// board's current cards, computing metadata relative to now. Called by the
// storage engine after every successful write or reload.
func (idx *Index) RebuildBoard(ctx context.Context, boardID, boardTitle string, b *board.Board, now time.Time) error {
	if idx == nil {
		return nil
	}
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin search index tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE board_id = ?`, boardID); err != nil {
		return fmt.Errorf("clear search index rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM card_tags WHERE board_id = ?`, boardID); err != nil {
		return fmt.Errorf("clear search index tags: %w", err)
	}

	for _, ref := range b.AllColumns() {
		for _, c := range ref.Column.Cards {
			meta := searchquery.DeriveMetadata(c.Content, now)
			var due sql.NullString
			if meta.DueDate != nil {
				due = sql.NullString{String: meta.DueDate.Format("2006-01-02"), Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO cards(board_id, column_index, kid, content, checked, board_title, column_title, due_date)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				boardID, ref.FlatIndex, c.Kid, c.Content, c.Checked, boardTitle, ref.Column.Title, due,
			); err != nil {
				return fmt.Errorf("insert search index row: %w", err)
			}
			for _, tag := range meta.HashTags {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO card_tags(board_id, kid, tag) VALUES (?, ?, ?)`,
					boardID, c.Kid, tag,
				); err != nil {
					return fmt.Errorf("insert search index tag: %w", err)
				}
			}
		}
	}
	return tx.Commit()
}

// RemoveBoard drops every indexed row for boardID.
func (idx *Index) RemoveBoard(ctx context.Context, boardID string) error {
	if idx == nil {
		return nil
	}
	if _, err := idx.db.ExecContext(ctx, `DELETE FROM cards WHERE board_id = ?`, boardID); err != nil {
		return err
	}
	_, err := idx.db.ExecContext(ctx, `DELETE FROM card_tags WHERE board_id = ?`, boardID)
	return err
}

// CandidateBoardIDs narrows the set of boards worth a full scan for a
// substring term, by checking the cached content column. Returns nil (no
// narrowing) if idx is nil, the query fails, or no board matches — callers
// should treat a nil result as "scan everything".
func (idx *Index) CandidateBoardIDs(ctx context.Context, substr string) []string {
	if idx == nil || substr == "" {
		return nil
	}
	rows, err := idx.db.QueryContext(ctx,
		`SELECT DISTINCT board_id FROM cards WHERE content LIKE '%' || ? || '%' COLLATE NOCASE`, substr)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// CandidateBoardIDsForTag narrows by hashtag via the card_tags side table.
func (idx *Index) CandidateBoardIDsForTag(ctx context.Context, tag string) []string {
	if idx == nil || tag == "" {
		return nil
	}
	rows, err := idx.db.QueryContext(ctx,
		`SELECT DISTINCT board_id FROM card_tags WHERE tag = ? COLLATE NOCASE`, tag)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
