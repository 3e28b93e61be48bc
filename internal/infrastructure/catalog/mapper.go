package catalog

import (
	"github.com/cardlens/backend/internal/domain"
)

// toDomainProduct converts a raw catalog payload row to the domain model.
// Price fields stay in integer pennies; domain.CatalogProduct.Prices owns
// the dollar conversion and the per-authority grade mapping.
func toDomainProduct(p productPayload) domain.CatalogProduct {
	return domain.CatalogProduct{
		ID:               p.ID.String(),
		ProductName:      p.ProductName,
		ConsoleName:      p.ConsoleName,
		LoosePrice:       p.LoosePrice,
		GradedPrice:      p.GradedPrice,
		ManualOnlyPrice:  p.ManualOnlyPrice,
		BoxOnlyPrice:     p.BoxOnlyPrice,
		BGS10Price:       p.BGS10Price,
		Condition17Price: p.Condition17Price,
		Condition18Price: p.Condition18Price,
	}
}
