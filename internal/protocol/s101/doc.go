// Package s101 owns the S101 link framing used to carry Ember+ payloads.
//
// Ownership boundary:
// - byte stuffing and CRC-16 frame codec
// - message header (slot, type, command, flags, dtd, app bytes)
// - multi-packet segmentation and reassembly
// - keep-alive messages
//
// The codec has no knowledge of Glow containers. Corrupt frames are dropped
// silently and only surface through Decoder.Dropped.
package s101
