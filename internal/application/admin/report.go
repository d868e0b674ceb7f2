package admin

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
)

// ReportService builds the recent-purchases revenue report from the ledger
type ReportService struct {
	purchases entitlement.PurchaseRepository
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

// NewReportService creates a report service
func NewReportService(purchases entitlement.PurchaseRepository, cat *catalog.Catalog, logger *zap.Logger) *ReportService {
	return &ReportService{purchases: purchases, catalog: cat, logger: logger}
}

// ProductLine is one product's slice of the report
type ProductLine struct {
	ProductID   string          `json:"product_id"`
	DisplayName string          `json:"display_name"`
	Count       int             `json:"count"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// PurchaseLine is one ledger row in report form
type PurchaseLine struct {
	OrderID     string          `json:"order_id"`
	Email       string          `json:"email"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PurchasesReport is the revenue report for a lookback window
type PurchasesReport struct {
	Days           int             `json:"days"`
	Since          time.Time       `json:"since"`
	TotalPurchases int             `json:"total_purchases"`
	TotalRefunded  int             `json:"total_refunded"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	ByProduct      []ProductLine   `json:"by_product"`
	Purchases      []PurchaseLine  `json:"purchases"`
}

// minorUnits converts cents to a decimal dollar amount
func minorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
}

// Recent builds the report for the last days days. The window is clamped to
// 1..90 days and defaults to 14. Refunded rows appear in the listing but do
// not count toward revenue.
func (s *ReportService) Recent(ctx context.Context, days int) (*PurchasesReport, error) {
	days = clampDays(days)
	since := time.Now().AddDate(0, 0, -days)

	rows, err := s.purchases.FindSince(ctx, since)
	if err != nil {
		return nil, err
	}

	report := &PurchasesReport{
		Days:         days,
		Since:        since,
		TotalRevenue: decimal.Zero,
		ByProduct:    []ProductLine{},
		Purchases:    make([]PurchaseLine, 0, len(rows)),
	}

	byProduct := map[string]*ProductLine{}
	var productOrder []string

	for _, row := range rows {
		amount := minorUnits(row.AmountPaid)
		report.Purchases = append(report.Purchases, PurchaseLine{
			OrderID:     row.OrderID,
			Email:       row.UserEmail,
			ProductID:   string(row.ProductID),
			ProductName: row.ProductName,
			Amount:      amount,
			Status:      string(row.Status),
			CreatedAt:   row.CreatedAt,
		})

		if row.Status == entitlement.PurchaseRefunded {
			report.TotalRefunded++
			continue
		}
		report.TotalPurchases++
		report.TotalRevenue = report.TotalRevenue.Add(amount)

		key := string(row.ProductID)
		line, ok := byProduct[key]
		if !ok {
			line = &ProductLine{
				ProductID:   key,
				DisplayName: s.catalog.DisplayName(row.ProductID),
				Revenue:     decimal.Zero,
			}
			byProduct[key] = line
			productOrder = append(productOrder, key)
		}
		line.Count++
		line.Revenue = line.Revenue.Add(amount)
	}

	for _, key := range productOrder {
		report.ByProduct = append(report.ByProduct, *byProduct[key])
	}

	s.logger.Info("purchases report built",
		zap.Int("days", days),
		zap.Int("purchases", report.TotalPurchases),
		zap.String("revenue", report.TotalRevenue.String()))
	return report, nil
}
