// Package testsupport provides shared fixtures for package tests: temp-dir
// configs, store setup with cleanup, and media item seeding.
package testsupport
