// Package textrec implements the optional text recognition stage. Recognized
// fragments are stored at several granularities (full text, block, line,
// element) with optional bounding boxes, and recent engine results are held
// in a bounded in-process cache.
package textrec
