package entity

import "testing"

func item(id, productID, unitType string, qty float64) CartItem {
	return CartItem{
		ID:          id,
		ProductID:   productID,
		ProductName: "Product " + productID,
		UnitType:    unitType,
		Quantity:    qty,
	}
}

func TestRecomputeAggregates(t *testing.T) {
	cart := &Cart{Items: []CartItem{
		item("u1", "p1", "plate", 2.5),
		item("u2", "p1", "plate", 1.5),
		item("u3", "p2", "plate", 4),
	}}
	cart.Recompute()

	if cart.TotalLots != 3 {
		t.Fatalf("total lots = %d, want 3", cart.TotalLots)
	}
	if cart.TotalQuantity != 8 {
		t.Fatalf("total quantity = %v, want 8", cart.TotalQuantity)
	}
	if len(cart.ProductGroups) != 2 {
		t.Fatalf("product groups = %d, want 2", len(cart.ProductGroups))
	}
	if g := cart.ProductGroups["p1"]; g == nil || g.TotalQuantity != 4 || len(g.Lots) != 2 {
		t.Fatalf("unexpected p1 group: %+v", g)
	}
	if g := cart.ProductGroups["p2"]; g == nil || g.TotalQuantity != 4 || len(g.Lots) != 1 {
		t.Fatalf("unexpected p2 group: %+v", g)
	}
}

func TestRecomputeEmptyCart(t *testing.T) {
	cart := &Cart{}
	cart.Recompute()

	if cart.TotalLots != 0 || cart.TotalQuantity != 0 {
		t.Fatal("empty cart must have zero aggregates")
	}
	if cart.TypeLabel != "Items" {
		t.Fatalf("empty cart label = %q, want Items", cart.TypeLabel)
	}
}

func TestTypeLabel(t *testing.T) {
	tests := []struct {
		name  string
		items []CartItem
		want  string
	}{
		{"single plate", []CartItem{item("u1", "p1", "plate", 1)}, "Plate"},
		{"several plates", []CartItem{item("u1", "p1", "plate", 1), item("u2", "p1", "plate", 1)}, "Plates"},
		{"single piece", []CartItem{item("u1", "p1", "piece", 1)}, "Piece"},
		{"mixed types", []CartItem{item("u1", "p1", "plate", 1), item("u2", "p2", "piece", 1)}, "Units"},
		{"unknown type", []CartItem{item("u1", "p1", "bundle", 1)}, "Units"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := &Cart{Items: tt.items}
			cart.Recompute()
			if cart.TypeLabel != tt.want {
				t.Fatalf("type label = %q, want %q", cart.TypeLabel, tt.want)
			}
		})
	}
}

func TestAggregatesAcrossMutationSequence(t *testing.T) {
	cart := &Cart{}
	cart.Recompute()

	plate := item("42", "p1", "plate", 10)
	cart.Items = append(cart.Items, plate)
	cart.Recompute()
	if cart.TotalLots != 1 || cart.TotalQuantity != 10 || cart.TypeLabel != "Plate" {
		t.Fatalf("after first add: lots=%d qty=%v label=%q", cart.TotalLots, cart.TotalQuantity, cart.TypeLabel)
	}

	cart.Items = append(cart.Items, item("43", "p2", "piece", 5))
	cart.Recompute()
	if cart.TotalLots != 2 || cart.TotalQuantity != 15 || cart.TypeLabel != "Units" {
		t.Fatalf("after mixed add: lots=%d qty=%v label=%q", cart.TotalLots, cart.TotalQuantity, cart.TypeLabel)
	}

	idx := cart.Find("42")
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	cart.Recompute()
	if cart.TotalLots != 1 || cart.TotalQuantity != 5 || cart.TypeLabel != "Piece" {
		t.Fatalf("after removal: lots=%d qty=%v label=%q", cart.TotalLots, cart.TotalQuantity, cart.TypeLabel)
	}
}

func TestGroupKeepsFirstSeenProductName(t *testing.T) {
	first := item("u1", "p1", "plate", 1)
	first.ProductName = "Original Name"
	second := item("u2", "p1", "plate", 1)
	second.ProductName = "Renamed"

	cart := &Cart{Items: []CartItem{first, second}}
	cart.Recompute()

	if got := cart.ProductGroups["p1"].Name; got != "Original Name" {
		t.Fatalf("group name = %q, want first-seen name", got)
	}
}

func TestContainsAndFind(t *testing.T) {
	cart := &Cart{Items: []CartItem{item("u1", "p1", "plate", 1), item("u2", "p1", "plate", 1)}}

	if !cart.Contains("u2") {
		t.Fatal("expected u2 in cart")
	}
	if cart.Contains("u9") {
		t.Fatal("did not expect u9 in cart")
	}
	if idx := cart.Find("u2"); idx != 1 {
		t.Fatalf("find u2 = %d, want 1", idx)
	}
	if idx := cart.Find("u9"); idx != -1 {
		t.Fatalf("find u9 = %d, want -1", idx)
	}
}

func TestHasHeldItems(t *testing.T) {
	held := item("u1", "p1", "plate", 1)
	held.HasHold = true
	cart := &Cart{Items: []CartItem{item("u2", "p1", "plate", 1), held}}

	if !cart.HasHeldItems() {
		t.Fatal("expected held items detected")
	}
	cart.Items = cart.Items[:1]
	if cart.HasHeldItems() {
		t.Fatal("no held items expected")
	}
}
