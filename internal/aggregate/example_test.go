package aggregate_test

import (
	"fmt"

	"invoicewatch/internal/aggregate"
)

func ExampleHistory_Upsert() {
	var h aggregate.History
	h = h.Upsert("2024-05-01", 100)
	h = h.Upsert("2024-04-30", 50)
	h = h.Upsert("2024-05-01", 25)

	for _, b := range h {
		fmt.Println(b.Date, b.Total, b.Cumulative, b.Invoices)
	}
	fmt.Println(h.Validate())
	// Output:
	// 2024-04-30 50 50 1
	// 2024-05-01 125 175 2
	// <nil>
}
