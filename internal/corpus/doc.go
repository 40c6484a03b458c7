// Package corpus enumerates the images a scan run will upload: a flat
// local directory, a remote HTML directory index, or a watched directory
// that feeds images as they arrive.
package corpus
