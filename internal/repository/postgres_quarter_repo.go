package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/irportal/internal/database"
	"github.com/hitoshi/irportal/internal/model"
)

// documentDateLayout は資料の日付の表示形式。
const documentDateLayout = "2006-01-02"

// listTables はdisplay_order付きで保存するリスト項目のテーブル。
// 削除と再挿入はこの順で行う。
var listTables = [...]string{"achievements", "challenges", "milestones"}

// PostgresQuarterRepo はPostgreSQLを使用した四半期データリポジトリ。
type PostgresQuarterRepo struct {
	db *sql.DB
}

// NewPostgresQuarterRepo はPostgresQuarterRepoを生成する。
func NewPostgresQuarterRepo(db *sql.DB) *PostgresQuarterRepo {
	return &PostgresQuarterRepo{db: db}
}

// FindByLabel は四半期ラベルで四半期データを取得する。見つからない場合はnilを返す。
// 子テーブルの行が欠けている場合は既定値で補う。
func (r *PostgresQuarterRepo) FindByLabel(ctx context.Context, label string) (*model.QuarterlyData, error) {
	data := &model.QuarterlyData{}
	err := r.db.QueryRowContext(ctx,
		`SELECT q.id, q.quarter_name, q.is_published, q.created_at, q.updated_at,
		        COALESCE(m.swap_volume, '$0'), COALESCE(m.card_spending, '$0'),
		        COALESCE(m.weekly_transacting_accounts, 0),
		        COALESCE(f.cash_position, '$0'), COALESCE(f.monthly_burn, '$0'),
		        COALESCE(f.runway_months, 0), COALESCE(f.monthly_revenue, '$0'),
		        COALESCE(f.headcount, 0),
		        COALESCE(c.update_text, ''),
		        COALESCE(a.title, ''), COALESCE(a.description, ''), COALESCE(a.action_text, '')
		 FROM quarters q
		 LEFT JOIN metrics m ON m.quarter_id = q.id
		 LEFT JOIN financials f ON f.quarter_id = q.id
		 LEFT JOIN ceo_updates c ON c.quarter_id = q.id
		 LEFT JOIN call_to_actions a ON a.quarter_id = q.id
		 WHERE q.quarter_name = $1`,
		label,
	).Scan(
		&data.ID, &data.Quarter, &data.IsPublished, &data.CreatedAt, &data.UpdatedAt,
		&data.Metrics.SwapVolume, &data.Metrics.CardSpending,
		&data.Metrics.WeeklyTransactingAccounts,
		&data.Financial.Cash, &data.Financial.MonthlyBurn,
		&data.Financial.RunwayMonths, &data.Financial.MonthlyRevenue,
		&data.Financial.Headcount,
		&data.Highlights.CEOUpdate,
		&data.CallToAction.Title, &data.CallToAction.Description, &data.CallToAction.ActionText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find quarter by label: %w", err)
	}

	lists := [...]*[]string{
		&data.Highlights.Achievements,
		&data.Highlights.Challenges,
		&data.Highlights.NextQuarterMilestones,
	}
	for i, table := range listTables {
		items, err := listDescriptions(ctx, r.db, table, data.ID)
		if err != nil {
			return nil, err
		}
		*lists[i] = items
	}

	docs, err := listDocuments(ctx, r.db, data.ID)
	if err != nil {
		return nil, err
	}
	data.Documents = docs

	return data, nil
}

func listDescriptions(ctx context.Context, db database.DBTX, table, quarterID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT description FROM `+table+` WHERE quarter_id = $1 ORDER BY display_order`,
		quarterID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	items := make([]string, 0)
	for rows.Next() {
		var description string
		if err := rows.Scan(&description); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		items = append(items, description)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return items, nil
}

func listDocuments(ctx context.Context, db database.DBTX, quarterID string) ([]model.Document, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, type, file_path, upload_date
		 FROM documents WHERE quarter_id = $1 ORDER BY upload_date DESC`,
		quarterID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]model.Document, 0)
	for rows.Next() {
		var doc model.Document
		var filePath sql.NullString
		var uploaded time.Time
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Type, &filePath, &uploaded); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.URL = filePath.String
		doc.Date = uploaded.UTC().Format(documentDateLayout)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// ListPublishedLabels は公開済み四半期のラベルを開始日の新しい順に返す。
func (r *PostgresQuarterRepo) ListPublishedLabels(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT quarter_name FROM quarters WHERE is_published ORDER BY start_date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list published quarters: %w", err)
	}
	defer rows.Close()

	labels := make([]string, 0)
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan quarter label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quarter labels: %w", err)
	}
	return labels, nil
}

// Save は四半期データを1トランザクションで丸ごと置き換える。
// 途中のいずれかの手順が失敗した場合は全体をロールバックする。
// 成功時はdata.IDに四半期IDを設定する。
func (r *PostgresQuarterRepo) Save(ctx context.Context, data *model.QuarterlyData, start, end time.Time) error {
	var quarterID string
	err := database.WithTx(ctx, r.db, func(ctx context.Context, tx database.DBTX) error {
		// 既存の四半期ではstart/endを変更しない
		err := tx.QueryRowContext(ctx,
			`INSERT INTO quarters (id, quarter_name, start_date, end_date, is_published, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now(), now())
			 ON CONFLICT (quarter_name) DO UPDATE
			 SET is_published = EXCLUDED.is_published, updated_at = now()
			 RETURNING id`,
			uuid.NewString(), data.Quarter, start, end, data.IsPublished,
		).Scan(&quarterID)
		if err != nil {
			return fmt.Errorf("failed to upsert quarter: %w", err)
		}

		if err := upsertScalarGroups(ctx, tx, quarterID, data); err != nil {
			return err
		}

		lists := [...][]string{
			data.Highlights.Achievements,
			data.Highlights.Challenges,
			data.Highlights.NextQuarterMilestones,
		}
		for i, table := range listTables {
			if err := replaceList(ctx, tx, table, quarterID, lists[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	data.ID = quarterID
	return nil
}

func upsertScalarGroups(ctx context.Context, tx database.DBTX, quarterID string, data *model.QuarterlyData) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO metrics (quarter_id, swap_volume, card_spending, weekly_transacting_accounts, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (quarter_id) DO UPDATE
		 SET swap_volume = EXCLUDED.swap_volume,
		     card_spending = EXCLUDED.card_spending,
		     weekly_transacting_accounts = EXCLUDED.weekly_transacting_accounts,
		     updated_at = now()`,
		quarterID, data.Metrics.SwapVolume, data.Metrics.CardSpending, data.Metrics.WeeklyTransactingAccounts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert metrics: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO financials (quarter_id, cash_position, monthly_burn, runway_months, monthly_revenue, headcount, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (quarter_id) DO UPDATE
		 SET cash_position = EXCLUDED.cash_position,
		     monthly_burn = EXCLUDED.monthly_burn,
		     runway_months = EXCLUDED.runway_months,
		     monthly_revenue = EXCLUDED.monthly_revenue,
		     headcount = EXCLUDED.headcount,
		     updated_at = now()`,
		quarterID, data.Financial.Cash, data.Financial.MonthlyBurn, data.Financial.RunwayMonths,
		data.Financial.MonthlyRevenue, data.Financial.Headcount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert financials: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ceo_updates (quarter_id, update_text, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (quarter_id) DO UPDATE
		 SET update_text = EXCLUDED.update_text, updated_at = now()`,
		quarterID, data.Highlights.CEOUpdate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ceo update: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO call_to_actions (quarter_id, title, description, action_text, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (quarter_id) DO UPDATE
		 SET title = EXCLUDED.title,
		     description = EXCLUDED.description,
		     action_text = EXCLUDED.action_text,
		     updated_at = now()`,
		quarterID, data.CallToAction.Title, data.CallToAction.Description, data.CallToAction.ActionText,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert call to action: %w", err)
	}
	return nil
}

// replaceList はtableの既存行を全て削除してからitemsを入力順に挿入する。
func replaceList(ctx context.Context, tx database.DBTX, table, quarterID string, items []string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE quarter_id = $1`,
		quarterID,
	); err != nil {
		return fmt.Errorf("failed to delete %s: %w", table, err)
	}

	for i, description := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (id, quarter_id, description, display_order) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), quarterID, description, i,
		); err != nil {
			return fmt.Errorf("failed to insert %s: %w", table, err)
		}
	}
	return nil
}

// DeleteByLabel は四半期データを削除する。子テーブルはCASCADE削除される。
func (r *PostgresQuarterRepo) DeleteByLabel(ctx context.Context, label string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM quarters WHERE quarter_name = $1`,
		label,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete quarter: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ QuarterRepository = (*PostgresQuarterRepo)(nil)
