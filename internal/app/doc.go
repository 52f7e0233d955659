// Package app contains the core application logic. It wires the template
// library, renderer, render cache and output format together behind a small
// set of operations (render, compile, list), decoupled from any specific
// entrypoint like a CLI.
package app
