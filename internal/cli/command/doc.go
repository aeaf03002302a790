// Package command defines the feedauth-cli commands.
//
// It uses urfave/cli/v2. Every session command builds an Env on first use:
// config is loaded, the session store opened and the session restored before
// the command runs. The Env is closed in the app's After hook, which leaves
// the stored session in place for the next invocation.
package command
