// Package media generates and caches photo thumbnails.
//
// Generation is asynchronous: callers request a thumbnail and receive
// completion events in debounced batches. A bounded worker pool does
// the decoding, orientation correction, and resizing, preferring
// libvips when it is available and falling back to pure-Go decoding
// otherwise. The disk cache is validated against the source file's
// modification time and reconciled at startup by a garbage collector.
package media
