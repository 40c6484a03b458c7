// Package catalog implements the client for the wine metadata lookup API.
// Given a vintage or wine id it returns the descriptive record (wine name,
// producer, region, vintage year) the comparator enriches scan outcomes
// with. Not-found responses surface as ErrNotFound so the enricher can
// degrade to absent fields instead of failing the run.
package catalog
