// Command crucible is the CLI for running, resuming, and inspecting
// iterative material property prediction tasks.
package main
