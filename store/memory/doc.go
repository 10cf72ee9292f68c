// Package memory implements the authgate credential store as an in-process
// map. It exists for development setups and tests; nothing persists across
// restarts.
package memory
