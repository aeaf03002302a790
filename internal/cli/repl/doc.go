// Package repl is the interactive mode of feedauth-cli.
//
// The REPL holds one session for the life of the process, so its expiry
// timer can fire while the user sits at the prompt. Forms are filled one
// field at a time through a Prompter: every entered value is an UpdateField,
// leaving the prompt is a BlurField, and a field whose error is showing is
// asked again.
package repl
