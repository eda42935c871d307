// Package formats provides readers and writers for the binary asset formats
// consumed by the training-data sampler.
package formats

// Note: MDVC (vertex cache) is implemented in vcache.go
