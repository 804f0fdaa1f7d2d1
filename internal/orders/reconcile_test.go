package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestReconcile_ComputesLineTotals(t *testing.T) {
	p1 := primitive.NewObjectID()
	p2 := primitive.NewObjectID()
	items, total := Reconcile([]ItemInput{
		{
			Product:         RefTo(p1),
			ProductSnapshot: &SnapshotInput{SKU: "PT-10", Name: "PT 10회권", Price: i64(100000), Category: "pt", Image: "a.jpg"},
			Quantity:        qty(2),
		},
		{
			Product:         RefTo(p2),
			ProductSnapshot: &SnapshotInput{SKU: "PT-1", Name: "PT 1회권", Price: i64(15000), Category: "pt", Image: "b.jpg"},
			Quantity:        qty(3),
		},
	})

	require.Len(t, items, 2)
	assert.Equal(t, int64(200000), items[0].LineTotal)
	assert.Equal(t, int64(45000), items[1].LineTotal)
	assert.Equal(t, int64(245000), total)
	assert.Equal(t, p1, items[0].Product)
}

// A tampered client total can never matter: the reconciler only ever reads
// snapshot price and quantity.
func TestReconcile_SingleItemScenario(t *testing.T) {
	items, total := Reconcile([]ItemInput{
		{
			Product:         RefTo(primitive.NewObjectID()),
			ProductSnapshot: &SnapshotInput{SKU: "PT-10", Name: "PT 10회권", Price: i64(100000), Category: "pt", Image: "a.jpg"},
			Quantity:        qty(2),
		},
	})
	require.Len(t, items, 1)
	assert.Equal(t, int64(200000), total)
}

func TestReconcile_TrimsSnapshotFields(t *testing.T) {
	items, _ := Reconcile([]ItemInput{
		{
			Product: RefTo(primitive.NewObjectID()),
			ProductSnapshot: &SnapshotInput{
				SKU: " PT-10 ", Name: " PT 10회권 ", Price: i64(100000),
				Category: " pt ", Image: " a.jpg ", InstructorName: " 박코치 ",
			},
			Quantity: qty(1),
		},
	})
	assert.Equal(t, "PT-10", items[0].ProductSnapshot.SKU)
	assert.Equal(t, "박코치", items[0].ProductSnapshot.InstructorName)
}
