// Package cli provides the interactive careercoach command-line client.
//
// It wires configuration, the encrypted credential store, the API client and
// the session-establishment core, and plays the presentation layer on top of
// them: it mounts verification sessions for incoming links, shows their
// state, and navigates only when the user types "continue".
//
// Typical flow: restore a stored session (retrying in the background while
// offline), handle the launch link if there is one, then run the REPL.
//
// Commands:
//   - login <email>  request a magic link
//   - open <link>    deliver an application link as if the OS had
//   - status / whoami / stats
//   - retry / continue
//   - logout / exit
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
