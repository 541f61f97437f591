// Package detection implements the object labeling stage. It feeds unlabeled
// media items through a pluggable inference engine and persists the labels
// that clear the configured confidence floor.
package detection
