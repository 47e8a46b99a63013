package invoice

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicewatch/pkg/models"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer(bogota)

	t.Run("invoice_date wins over timestamp", func(t *testing.T) {
		inv, err := n.Normalize(models.RawInvoice{
			"invoice_number": "A1",
			"invoice_date":   "2024-05-01T10:00:00",
			"timestamp":      "2024-05-02T10:00:00",
			"total":          json.Number("100"),
		})
		require.NoError(t, err)
		assert.Equal(t, "2024-05-01T10:00:00.000-05:00", inv.Timestamp)
		assert.Equal(t, inv.Timestamp, inv.Raw["timestamp"])
	})

	t.Run("unparseable candidate falls through", func(t *testing.T) {
		inv, err := n.Normalize(models.RawInvoice{
			"invoice_date": "soon",
			"timestamp":    "",
			"created_at":   "1714579800",
		})
		require.NoError(t, err)
		assert.Equal(t, "2024-05-01T11:10:00.000-05:00", inv.Timestamp)
	})

	t.Run("no timestamp keeps the record", func(t *testing.T) {
		inv, err := n.Normalize(models.RawInvoice{"invoice_number": "Z9", "total": 5})
		require.NoError(t, err)
		assert.False(t, inv.HasTimestamp())
		assert.Equal(t, "Z9", inv.Identifier)
	})

	t.Run("amounts and defaults", func(t *testing.T) {
		inv, err := n.Normalize(models.RawInvoice{
			"invoice_number": json.Number("1042"),
			"total":          "12.50",
			"items":          []any{map[string]any{}, map[string]any{}},
			"timestamp":      "2024-05-01 09:15:00",
		})
		require.NoError(t, err)
		assert.Equal(t, "1042", inv.InvoiceNumber)
		assert.Equal(t, 12.5, inv.Total)
		assert.Equal(t, 12.5, inv.Subtotal)
		assert.Equal(t, 2, inv.Items)
		assert.Equal(t, models.DefaultBranch, inv.Branch)
	})

	t.Run("explicit subtotal and branch", func(t *testing.T) {
		inv, err := n.Normalize(models.RawInvoice{
			"total":    119.0,
			"subtotal": 100.0,
			"branch":   "CED",
			"items":    json.Number("3"),
		})
		require.NoError(t, err)
		assert.Equal(t, 100.0, inv.Subtotal)
		assert.Equal(t, "CED", inv.Branch)
		assert.Equal(t, 3, inv.Items)
	})

	t.Run("non numeric total coerces to zero", func(t *testing.T) {
		inv, err := n.Normalize(models.RawInvoice{"total": "n/a", "subtotal": map[string]any{}})
		require.NoError(t, err)
		assert.Zero(t, inv.Total)
		assert.Zero(t, inv.Subtotal)
	})

	t.Run("nil record is rejected", func(t *testing.T) {
		_, err := n.Normalize(nil)
		assert.True(t, errors.Is(err, ErrNotInvoice))
	})
}

func TestMergeNewFieldsWin(t *testing.T) {
	n := NewNormalizer(bogota)

	current, err := n.Normalize(models.RawInvoice{
		"invoice_number": "A1",
		"timestamp":      "2024-05-01T10:00:00",
		"total":          100,
		"branch":         "CED",
		"customer":       "walk-in",
	})
	require.NoError(t, err)

	update, err := n.Normalize(models.RawInvoice{
		"invoice_number": "A1",
		"timestamp":      "2024-05-01T10:00:00",
		"total":          120,
	})
	require.NoError(t, err)

	merged, err := n.Merge(current, update)
	require.NoError(t, err)
	assert.Equal(t, 120.0, merged.Total)
	assert.Equal(t, "CED", merged.Branch)
	assert.Equal(t, "walk-in", merged.Raw["customer"])
	assert.Equal(t, current.Timestamp, merged.Timestamp)
}

func TestDecode(t *testing.T) {
	raw, err := Decode([]byte(`{"invoice_number":"A2","total":50}`))
	require.NoError(t, err)
	assert.Equal(t, "A2", raw["invoice_number"])
	assert.Equal(t, json.Number("50"), raw["total"])

	for _, frame := range []string{`[1,2]`, `"hello"`, `42`, `null`} {
		_, err := Decode([]byte(frame))
		assert.ErrorIs(t, err, ErrNotInvoice, frame)
	}

	raw, err = Decode([]byte("{\"invoice_number\":\"A3\"}\n"))
	require.NoError(t, err)
	assert.Equal(t, "A3", raw["invoice_number"])

	for _, frame := range []string{
		`{"invoice_number":"Z9","total":5} garbage`,
		`{"invoice_number":"Z9"}{"x":1}`,
		`{"invoice_number":"Z9"} [1]`,
	} {
		_, err := Decode([]byte(frame))
		assert.ErrorIs(t, err, ErrMalformedPayload, frame)
	}

	_, err = Decode([]byte(`{"invoice_number":`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	var normErr *NormalizeError
	require.ErrorAs(t, err, &normErr)
	assert.Equal(t, "Decode", normErr.Op)
}

func TestDayOf(t *testing.T) {
	n := NewNormalizer(bogota)

	inv, err := n.Normalize(models.RawInvoice{"timestamp": "2024-05-01T23:30:00"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", n.DayOf(inv))

	assert.Equal(t, "", n.DayOf(models.Invoice{}))
	assert.Equal(t, "2024-05-02", n.DayOfValue("2024-05-02 08:00:00"))
	assert.Equal(t, "", n.DayOfValue("garbage"))
}
