// Package scan implements the discovery stage: it lists the media index,
// registers files the library has not seen, and captures EXIF position and
// capture-time metadata while doing so.
package scan
