// Package transform computes width-resized derivatives of stored images.
//
// Resize is a pure function over byte slices: it sniffs the source, decodes
// it, scales it to the requested width keeping the aspect ratio, and encodes
// the result in the source format. JPEG, PNG, GIF, BMP and TIFF round-trip
// to the same format; WebP sources are decoded but re-encoded as PNG because
// no WebP encoder is available. Pool bounds how many resizes run at once so
// CPU-bound work cannot starve I/O-bound requests.
package transform
