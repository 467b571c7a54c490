package validation

import (
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report JSON field names instead of Go ones
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// the claimed total must match the sum of price * quantity of the items
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

// createOrderStructValidation verifies item prices are not negative and the
// aggregated total of items equals TotalAmount in cents.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	sum := decimal.Zero
	for i, it := range req.Items {
		if it.ProductPrice == nil {
			return // reported by the required tag
		}
		if it.ProductPrice.IsNegative() {
			sl.ReportError(it.ProductPrice, fmt.Sprintf("items[%d].product_price", i), "ProductPrice", "gte", "0")
			return
		}
		sum = sum.Add(it.ProductPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if req.TotalAmount == nil || len(req.Items) == 0 {
		return
	}

	if !sum.Round(2).Equal(req.TotalAmount.Round(2)) {
		sl.ReportError(req.TotalAmount, "totalAmount", "TotalAmount", "amount_match_items",
			fmt.Sprintf("items sum %s != totalAmount %s", sum.StringFixed(2), req.TotalAmount.StringFixed(2)))
	}
}
