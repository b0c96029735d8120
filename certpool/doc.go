// Package certpool deduplicates raw certificate DER buffers for an X.509
// layer.
//
// Acquire scans the pool for a byte-identical certificate and either bumps
// its reference count or stores a private copy. Release drops a reference;
// the last one removes the entry and zeroes its memory. A later Acquire of
// the same bytes always allocates fresh storage.
//
//	h, err := certpool.Default().Acquire(der)
//	if err != nil {
//	    return err
//	}
//	defer certpool.Default().Release(h)
//
// Handles are single-use: releasing a handle twice, or using one after the
// pool is closed, reports crypto.ErrBadState.
package certpool
