// Package glow owns the typed Ember+ containers exchanged inside S101 payloads.
//
// Ownership boundary:
// - container types (commands, nodes, parameters, matrices, functions,
//   their qualified forms, streams, invocation results)
// - container codec (Encode/Decode) on top of the tlv field codec
// - the Walker that dispatches a decoded container tree to a Handler
//
// The wire encoding is a tlv container format, not ASN.1 BER, so this
// provider does not interoperate with stock Ember+ consumers. The codec is
// the substitution point for a BER implementation; everything above it only
// sees the types in this package.
package glow
