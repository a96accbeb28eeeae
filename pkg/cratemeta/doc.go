/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/

// Package cratemeta exposes `cargo metadata` output to Go programs that run
// as part of a Cargo build, typically code generators invoked from a
// build script.
//
// The zero-config functions read the variables cargo sets for build
// scripts (CARGO_MANIFEST_DIR, CARGO_PKG_NAME and optionally CARGO):
//
//	type Config struct {
//		Kind string `json:"kind"`
//		N    int    `json:"n"`
//	}
//
//	root, err := cratemeta.CrateMetadata[Config]()
//	if err != nil {
//		return err
//	}
//	if len(root.Packages) == 0 {
//		return errors.New("crate not found in cargo metadata")
//	}
//	cfg := root.Packages[0].Metadata // *Config, nil without [package.metadata]
//
// The tool always runs as
//
//	cargo metadata --offline --locked --frozen --no-deps --format-version=1 --manifest-path <manifest>
//
// so the call neither touches the network nor rewrites Cargo.lock. Use
// Value as M to keep the extra metadata untyped.
//
// Gateway and the Load* functions accept a context and an injectable
// Runner; they back the zero-config functions and are what tests use.
// Every failure is an *Error whose Kind can be matched with errors.Is
// against the Err* sentinels.
package cratemeta
