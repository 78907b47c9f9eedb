package loot

// Rand is the subset of *math/rand/v2.Rand that Roll uses.
type Rand interface {
	IntN(n int) int
}

// ItemDrop is one object produced by a roll.
type ItemDrop struct {
	Vnum int
	Qty  int
}

// Drop is the concrete loot produced by one Roll.
type Drop struct {
	Items []ItemDrop
	CP    int
}

// Roll generates loot from a resolved table. Each draw picks one entry by
// weight per roll; each standalone entry drops with Weight percent chance.
func Roll(r *Resolved, rng Rand) Drop {
	var d Drop
	take := func(e Entry) {
		qty := e.Min
		if e.Max > e.Min {
			qty += rng.IntN(e.Max - e.Min + 1)
		}
		if qty <= 0 {
			return
		}
		if e.Kind == EntryCP {
			d.CP += qty
			return
		}
		d.Items = append(d.Items, ItemDrop{Vnum: e.Vnum, Qty: qty})
	}

	for _, draw := range r.Draws {
		total := 0
		for _, e := range draw.Entries {
			total += e.Weight
		}
		if total <= 0 {
			continue
		}
		for range draw.Rolls {
			n := rng.IntN(total)
			for _, e := range draw.Entries {
				if n < e.Weight {
					take(e)
					break
				}
				n -= e.Weight
			}
		}
	}
	for _, e := range r.Items {
		if e.Weight >= 100 || (e.Weight > 0 && rng.IntN(100) < e.Weight) {
			take(e)
		}
	}
	return d
}
