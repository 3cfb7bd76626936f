// Package pkg groups the tool bridge's sub-packages.
//
// Dependencies run leaf first: errors, logging and observability have no
// in-repo imports; config and resilience build on them; session and process
// sit under transport; provider and toolserver expose the tools; client ties
// transport and providers together.
package pkg
