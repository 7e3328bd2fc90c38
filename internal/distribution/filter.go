package distribution

import "github.com/nzahrani/offercast/internal/storage"

// Policy is one filter dimension: either unrestricted or an exclusive
// allow-list of ids. Computing the policy once up front keeps the
// open/closed distinction explicit instead of re-checking list emptiness
// per offer.
type Policy struct {
	allowed map[uint]struct{} // nil means unrestricted
}

// Unrestricted reports whether the dimension imposes no constraint.
func (p Policy) Unrestricted() bool { return p.allowed == nil }

// AllowsID reports whether a required id passes the policy.
func (p Policy) AllowsID(id uint) bool {
	if p.allowed == nil {
		return true
	}
	_, ok := p.allowed[id]
	return ok
}

// AllowsRef reports whether an optional reference passes the policy. A nil
// reference fails any non-empty allow-list: an offer with no brand cannot
// match a brand filter.
func (p Policy) AllowsRef(id *uint) bool {
	if p.allowed == nil {
		return true
	}
	if id == nil {
		return false
	}
	_, ok := p.allowed[*id]
	return ok
}

func allowList(ids []uint) Policy {
	if len(ids) == 0 {
		return Policy{}
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Policy{allowed: set}
}

// Filter is a subscriber's compiled preference: three independent
// dimensions, each unrestricted when its stored list is empty.
type Filter struct {
	Suppliers  Policy
	Brands     Policy
	Categories Policy
}

// NewFilter compiles a stored preference. A subscriber without a preference
// row is unrestricted on all dimensions.
func NewFilter(pref *storage.Preference) Filter {
	if pref == nil {
		return Filter{}
	}
	supplierIDs := make([]uint, 0, len(pref.Suppliers))
	for _, s := range pref.Suppliers {
		supplierIDs = append(supplierIDs, s.ID)
	}
	brandIDs := make([]uint, 0, len(pref.Brands))
	for _, b := range pref.Brands {
		brandIDs = append(brandIDs, b.ID)
	}
	categoryIDs := make([]uint, 0, len(pref.Categories))
	for _, c := range pref.Categories {
		categoryIDs = append(categoryIDs, c.ID)
	}
	return Filter{
		Suppliers:  allowList(supplierIDs),
		Brands:     allowList(brandIDs),
		Categories: allowList(categoryIDs),
	}
}

// Apply returns the offers the subscriber should see, preserving input
// order. Inputs are never mutated.
func (f Filter) Apply(offers []storage.Offer) []storage.Offer {
	if f.Suppliers.Unrestricted() && f.Brands.Unrestricted() && f.Categories.Unrestricted() {
		return offers
	}

	out := make([]storage.Offer, 0, len(offers))
	for _, o := range offers {
		if !f.Suppliers.AllowsID(o.SupplierID) {
			continue
		}
		if !f.Brands.AllowsRef(o.BrandID) {
			continue
		}
		if !f.Categories.AllowsRef(o.CategoryID) {
			continue
		}
		out = append(out, o)
	}
	return out
}
