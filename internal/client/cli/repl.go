package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context, args []string) error
	Open(ctx context.Context, args []string) error
	Status(ctx context.Context) error
	Retry(ctx context.Context) error
	Continue(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Logout(ctx context.Context) error
	Stats(ctx context.Context) error
}

// Root runs the REPL on the app's input until EOF, "exit" or ctx is done.
func (a *App) Root(ctx context.Context) {
	prompt := interactive(a.in)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runREPL(ctx, a, a.getStatus, a.reader(), prompt)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// runREPL reads one command per line from reader and dispatches it to a.
// Unknown commands are reported back to the user. The loop exits on EOF or
// when the user types "exit" or "quit".
//
//	Signed out:
//	  - login [email]  request a sign-in link by email
//	  - open <link>    handle a deep link as if the OS delivered it
//	  - status         show mode, screen and verification state
//	  - retry          retry a failed verification
//	  - continue       leave the verification screen
//
//	Signed in, additionally:
//	  - whoami         show the cached profile
//	  - logout         sign out on this device
//
// Handlers report their own errors, so the loop ignores them.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, prompt bool) {
	for {
		if prompt {
			printlnFn(fmt.Sprintf("cc> %s > ", statusFn()))
		}
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: open, status, retry, continue, whoami, logout, stats, exit")
			} else {
				printlnFn("Available commands: login, open, status, retry, continue, stats, exit")
			}

		case "login":
			_ = a.Login(ctx, args)

		case "open":
			_ = a.Open(ctx, args)

		case "status":
			_ = a.Status(ctx)

		case "retry":
			_ = a.Retry(ctx)

		case "c", "continue":
			_ = a.Continue(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "stats":
			_ = a.Stats(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
