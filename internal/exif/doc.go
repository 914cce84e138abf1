// Package exif extracts photo metadata for cataloging.
//
// It reads image dimensions and EXIF tags from a file, converting every
// tag into a JSON-safe value so the full tag set can be persisted
// alongside the well-known fields (capture time, camera, exposure, GPS).
package exif
