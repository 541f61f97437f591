package scan

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is the capture information read from an image file. Fields are
// nil or zero when the file carries no usable EXIF data.
type Metadata struct {
	Latitude  *float64
	Longitude *float64
	TakenAt   time.Time
}

// GPSReader extracts capture metadata from a media file. Implementations
// are best-effort: a missing or corrupt header yields an empty Metadata,
// never an error, so one bad file cannot stall a scan.
type GPSReader interface {
	Read(path string) Metadata
}

// ExifReader reads capture metadata from EXIF headers.
type ExifReader struct{}

func (ExifReader) Read(path string) Metadata {
	var meta Metadata

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	// Files without EXIF data are common and not an error.
	exifData, err := exif.Decode(f)
	if err != nil {
		return meta
	}

	if dt, err := exifData.DateTime(); err == nil {
		meta.TakenAt = dt.UTC()
	}
	if lat, lon, err := exifData.LatLong(); err == nil {
		meta.Latitude = &lat
		meta.Longitude = &lon
	}
	return meta
}
