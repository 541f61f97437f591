// Package geocode implements the location resolution stage. It reverse
// geocodes item coordinates against a Nominatim-compatible service under a
// strict request rate, with a per-item retry budget so a stubborn coordinate
// cannot stall the pipeline forever.
package geocode
