package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/procurehub/marketplace-api/internal/model"
)

type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productCols = "id,vendor_id,manufacturer,model,speed,description,total_machine_cost,cost_per_copy,colour,paper_sizes,volume_min,volume_max,features,created_at"

// ListAll returns the full product catalog ordered by vendor. One call per
// scoring pass; the result is the engine's catalog snapshot.
func (r *ProductRepo) ListAll(ctx context.Context) ([]model.VendorProduct, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productCols+" FROM vendorproducts ORDER BY vendor_id, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ListByVendor returns all products belonging to one vendor.
func (r *ProductRepo) ListByVendor(ctx context.Context, vendorID uint64) ([]model.VendorProduct, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productCols+" FROM vendorproducts WHERE vendor_id=? ORDER BY id", vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]model.VendorProduct, error) {
	var out []model.VendorProduct
	for rows.Next() {
		var (
			p               model.VendorProduct
			sizes, features []byte
		)
		if err := rows.Scan(&p.ID, &p.VendorID, &p.Manufacturer, &p.Model, &p.Speed,
			&p.Description, &p.TotalMachineCost, &p.CostPerCopy, &p.Colour,
			&sizes, &p.Volume.Min, &p.Volume.Max, &features, &p.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(sizes, &p.PaperSizes)
		_ = json.Unmarshal(features, &p.Features)
		out = append(out, p)
	}
	return out, rows.Err()
}
