package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"checkout-orchestrator/internal/model"
)

// ContentHash fingerprints line items independently of their order. Prices
// are normalized so "10" and "10.00" hash the same.
func ContentHash(items []model.LineItem) string {
	rows := make([]string, len(items))
	for i, item := range items {
		rows[i] = fmt.Sprintf("%s|%s|%d|%s|%s",
			item.ProductID,
			item.VariantID,
			item.Quantity,
			item.UnitFiatPrice.StringFixed(8),
			item.UnitTokenPrice.StringFixed(8),
		)
	}
	sort.Strings(rows)

	sum := sha256.Sum256([]byte(strings.Join(rows, "\n")))
	return hex.EncodeToString(sum[:])
}
