// Package logging provides a minimal leveled logger shared by all
// photosphere packages. The level is resolved once from the LOG_LEVEL
// and DEBUG environment variables.
package logging
