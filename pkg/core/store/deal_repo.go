package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"snf_underwriting/pkg/core/ratios"
	"snf_underwriting/pkg/core/reconcile"
	"snf_underwriting/pkg/models"
)

// Schema assumption:
//
//	deal_monthly_financials (deal_id, month, <financial columns>, source_document, updated_at) PK (deal_id, month)
//	deal_monthly_census     (deal_id, month, <census columns>, source_document, updated_at)    PK (deal_id, month)
//	deal_monthly_expenses   (deal_id, month, department, <expense columns>, ...)              PK (deal_id, month, department)
//	deal_rate_schedules     (deal_id, payer_type, care_level, room_type, daily_rate, monthly_rate, effective_date)
//	deal_expense_ratios     (deal_id PK, <ratio columns>, updated_at)
//	deal_extractions        (deal_id PK, summary JSONB, dataset JSONB, updated_at)
const (
	tableFinancials  = "deal_monthly_financials"
	tableCensus      = "deal_monthly_census"
	tableExpenses    = "deal_monthly_expenses"
	tableRates       = "deal_rate_schedules"
	tableRatios      = "deal_expense_ratios"
	tableExtractions = "deal_extractions"
)

// ratioColumns are the ratio metrics stored per deal.
var ratioColumns = []string{
	"labor_pct", "agency_pct", "food_pct", "food_cost_per_resident_day", "management_fee_pct",
	"bad_debt_pct", "utilities_pct", "insurance_pct", "ebitda_margin", "ebitdar_margin",
	"revenue_per_bed", "revenue_per_resident_day",
}

// ErrNotFound is returned when a deal has no stored extraction.
var ErrNotFound = errors.New("deal not found")

// DealRepo writes reconciled deals. Every write is an upsert so a re-run replaces the
// previous rows instead of duplicating them.
type DealRepo struct {
	pool *pgxpool.Pool
}

// NewDealRepo creates a repository on p. A nil pool uses the shared pool from InitDB.
func NewDealRepo(p *pgxpool.Pool) *DealRepo {
	return &DealRepo{pool: p}
}

func (r *DealRepo) db() (*pgxpool.Pool, error) {
	if r.pool != nil {
		return r.pool, nil
	}
	if p := GetPool(); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("database pool not initialized")
}

// SaveDeal stores the monthly series, rate schedules, expense ratios and the flat summary
// for dealID in one transaction.
func (r *DealRepo) SaveDeal(ctx context.Context, dealID string, ds *reconcile.Dataset, rt *ratios.Ratios) error {
	if ds == nil {
		return fmt.Errorf("no dataset to save for deal %s", dealID)
	}
	p, err := r.db()
	if err != nil {
		return err
	}

	batch, err := BuildDealBatch(dealID, ds, rt)
	if err != nil {
		return err
	}
	err = pgx.BeginFunc(ctx, p, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to save deal %s: %w", dealID, err)
	}
	return nil
}

// LoadSummary returns the flat summary stored for dealID.
func (r *DealRepo) LoadSummary(ctx context.Context, dealID string) (*models.FacilitySummary, error) {
	p, err := r.db()
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = p.QueryRow(ctx, `SELECT summary FROM `+tableExtractions+` WHERE deal_id = $1`, dealID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dealID)
		}
		return nil, fmt.Errorf("failed to load deal %s: %w", dealID, err)
	}
	var s models.FacilitySummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary for deal %s: %w", dealID, err)
	}
	return &s, nil
}

// BuildDealBatch queues every statement SaveDeal sends.
func BuildDealBatch(dealID string, ds *reconcile.Dataset, rt *ratios.Ratios) (*pgx.Batch, error) {
	b := &pgx.Batch{}

	queueMonthly(b, tableFinancials, dealID, []string{"month"}, models.FinancialFields, ds.MonthlyFinancials,
		func(rec *models.MonthlyFinancialRecord) ([]any, string) { return []any{rec.Month}, rec.SourceDocument })
	queueMonthly(b, tableCensus, dealID, []string{"month"}, models.CensusFields, ds.MonthlyCensus,
		func(rec *models.MonthlyCensusRecord) ([]any, string) { return []any{rec.Month}, rec.SourceDocument })
	queueMonthly(b, tableExpenses, dealID, []string{"month", "department"}, models.ExpenseFields, ds.MonthlyExpenses,
		func(rec *models.MonthlyExpenseRecord) ([]any, string) {
			return []any{rec.Month, rec.Department}, rec.SourceDocument
		})

	b.Queue(`DELETE FROM `+tableRates+` WHERE deal_id = $1`, dealID)
	for _, e := range ds.Rates.All() {
		b.Queue(`INSERT INTO `+tableRates+` (deal_id, payer_type, care_level, room_type, daily_rate, monthly_rate, effective_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			dealID, e.PayerType, e.CareLevel, e.RoomType, e.DailyRate, e.MonthlyRate, e.EffectiveDate)
	}

	if rt != nil {
		args := []any{dealID}
		for _, col := range ratioColumns {
			args = append(args, rt.Value(col))
		}
		b.Queue(UpsertSQL(tableRatios, []string{"deal_id"}, ratioColumns), args...)
	}

	summary, err := json.Marshal(ds.Summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	dataset, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset: %w", err)
	}
	b.Queue(UpsertSQL(tableExtractions, []string{"deal_id"}, []string{"summary", "dataset"}), dealID, summary, dataset)
	return b, nil
}

// queueMonthly adds one upsert per record, keyed by deal_id plus keys.
func queueMonthly[T any](b *pgx.Batch, table, dealID string, keys []string, fields []models.Field[T], records []T, identity func(*T) ([]any, string)) {
	cols := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		cols = append(cols, f.Name)
	}
	cols = append(cols, "source_document")
	sql := UpsertSQL(table, append([]string{"deal_id"}, keys...), cols)

	for i := range records {
		rec := &records[i]
		keyVals, source := identity(rec)
		args := append([]any{dealID}, keyVals...)
		for _, f := range fields {
			args = append(args, f.Get(rec))
		}
		args = append(args, source)
		b.Queue(sql, args...)
	}
}

// UpsertSQL renders an INSERT ... ON CONFLICT (keys) DO UPDATE statement. Placeholders follow
// keys then cols; updated_at is set to NOW() on both paths.
func UpsertSQL(table string, keys, cols []string) string {
	all := append(append([]string{}, keys...), cols...)
	placeholders := make([]string, len(all))
	for i := range all {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		updates = append(updates, c+" = EXCLUDED."+c)
	}
	updates = append(updates, "updated_at = NOW()")

	return fmt.Sprintf("INSERT INTO %s (%s, updated_at) VALUES (%s, NOW()) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(all, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(keys, ", "),
		strings.Join(updates, ", "))
}
