// Package entities registers every entity definition with the core registry.
// Import this package for its side effects to make the entities available.
package entities
