// Package resources bounds concurrent collaborator work.
//
// A Manager admits a request only when a concurrency slot is free and the
// live host headroom (free memory net of outstanding leases, CPU
// utilization, free disk) covers it. Admission waits on the slot for as long
// as the context allows and polls headroom up to the acquire timeout before
// failing with services.ErrResourceExhausted. Leases are released exactly
// once, and the Manager is the only place lease accounting is mutated.
package resources
