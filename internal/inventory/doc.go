// Package inventory binds serialized cart lines to concrete units.
//
// Allocation is two steps separated in time. First a Selection is built from
// the units the inventory collaborator currently reports as available, and
// the operator picks units from it by serial, IMEI, MAC or barcode. Then the
// Allocator commits the picked set with one conditional status update per
// unit ("set reserved only if still available"). Mutual exclusion belongs to
// the storage layer; the allocator holds no locks and turns a rejected update
// into a StaleUnit failure after undoing the units it already moved.
package inventory
