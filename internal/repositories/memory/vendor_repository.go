package memory

import (
	"context"
	"strings"

	domain "github.com/helpora/api/internal/domain"
)

// VendorRepository stores vendor records in memory.
type VendorRepository struct {
	state *state
}

// Insert adds a vendor, failing with a conflict when the ID is taken.
func (r *VendorRepository) Insert(ctx context.Context, vendor domain.Vendor) error {
	id := strings.TrimSpace(vendor.ID)
	if id == "" {
		return conflictError("vendor insert", "vendor id is required")
	}

	unlock := r.state.lockWrites(ctx)
	defer unlock()
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	if _, exists := r.state.vendors[id]; exists {
		return conflictError("vendor insert", "vendor %s already exists", id)
	}
	r.state.vendors[id] = vendor
	return nil
}

// FindByID resolves a vendor record.
func (r *VendorRepository) FindByID(_ context.Context, vendorID string) (domain.Vendor, error) {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()

	vendor, ok := r.state.vendors[strings.TrimSpace(vendorID)]
	if !ok {
		return domain.Vendor{}, notFoundError("vendor find", "vendor %s not found", vendorID)
	}
	return vendor, nil
}
