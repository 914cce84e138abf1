// Package startup handles configuration loading, application-data
// directory resolution, and startup/shutdown logging.
package startup
