package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/klf200-bridge/internal/infrastructure/database"
)

// SQLitePersister stores the tree in the nodes and state_values tables.
type SQLitePersister struct {
	db *database.DB
}

// NewSQLitePersister returns a persister on a migrated database.
func NewSQLitePersister(db *database.DB) *SQLitePersister {
	return &SQLitePersister{db: db}
}

// Load returns every persisted node.
func (p *SQLitePersister) Load(ctx context.Context) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT n.id, n.kind, n.meta, v.value, v.ack, v.ts
		FROM nodes n
		LEFT JOIN state_values v ON v.id = n.id
		ORDER BY n.id`)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r          Record
			kind, meta string
			value, ts  sql.NullString
			ack        sql.NullBool
		)
		if err := rows.Scan(&r.ID, &kind, &meta, &value, &ack, &ts); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		r.Kind = NodeKind(kind)

		switch r.Kind {
		case KindChannel:
			if err := json.Unmarshal([]byte(meta), &r.Channel); err != nil {
				return nil, fmt.Errorf("decoding channel %s: %w", r.ID, err)
			}
		case KindState:
			if err := json.Unmarshal([]byte(meta), &r.Meta); err != nil {
				return nil, fmt.Errorf("decoding state %s: %w", r.ID, err)
			}
			if ts.Valid {
				st := State{Ack: ack.Bool}
				if value.Valid {
					if err := json.Unmarshal([]byte(value.String), &st.Value); err != nil {
						return nil, fmt.Errorf("decoding value %s: %w", r.ID, err)
					}
				}
				st.Timestamp, _ = time.Parse(time.RFC3339Nano, ts.String) //nolint:errcheck // Format is controlled
				r.State = &st
			}
		default:
			continue
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return records, nil
}

// SaveChannel creates or replaces a channel node.
func (p *SQLitePersister) SaveChannel(ctx context.Context, id string, meta ChannelMeta) error {
	return p.saveNode(ctx, id, KindChannel, meta)
}

// SaveState creates or replaces a state node's metadata.
func (p *SQLitePersister) SaveState(ctx context.Context, id string, meta StateMeta) error {
	return p.saveNode(ctx, id, KindState, meta)
}

func (p *SQLitePersister) saveNode(ctx context.Context, id string, kind NodeKind, meta any) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", id, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO nodes (id, kind, meta, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, meta = excluded.meta, updated_at = excluded.updated_at`,
		id, string(kind), string(b), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SaveValue stores the current value of a state node.
func (p *SQLitePersister) SaveValue(ctx context.Context, id string, st State) error {
	b, err := json.Marshal(st.Value)
	if err != nil {
		return fmt.Errorf("encoding value %s: %w", id, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO state_values (id, value, ack, ts) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, ack = excluded.ack, ts = excluded.ts`,
		id, string(b), st.Ack, st.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// DeleteTree removes a node and all its descendants. Values go with their
// nodes through the foreign key cascade.
func (p *SQLitePersister) DeleteTree(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM nodes WHERE id = ? OR id LIKE ? ESCAPE '\'`,
		id, likePrefix(id+Sep),
	)
	return err
}

// likePrefix escapes LIKE wildcards in prefix and appends "%".
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
