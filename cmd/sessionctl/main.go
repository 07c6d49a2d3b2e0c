// sessionctl exercises the session client from a terminal: it initializes
// the session, logs in, prints the identity and lists emergency contacts.
// Useful for poking at a deployment without a browser in front of it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-client/contacts"
	"github.com/jrsteele09/go-session-client/creds"
	"github.com/jrsteele09/go-session-client/creds/storage"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/internal/utils"
	"github.com/jrsteele09/go-session-client/refresh"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/jrsteele09/go-session-client/transport"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(os.Args) < 3 {
		return errors.New("usage: sessionctl <username> <password>")
	}

	c := config.New()
	displayAppname(c.GetAppName())

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	strategy, err := creds.ParseStrategy(c.GetStrategy())
	if err != nil {
		return err
	}

	store := creds.NewStore(strategy, storage.NewMemory())
	t, err := transport.New(c.GetBaseURL(), store,
		transport.WithLogger(logger),
		transport.WithLocale(c.GetLocale()),
		transport.WithCSRFCookieName(c.GetCSRFCookieName()),
	)
	if err != nil {
		return err
	}

	recovery, err := refresh.NewManager(t, store, refresh.WithLogger(logger))
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(t, store, recovery, session.WithLogger(logger))
	if err != nil {
		return err
	}

	contactList, err := contacts.NewClient(recovery)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshot := sessions.Initialize(ctx)
	fmt.Printf("initialized: authenticated=%v\n", snapshot.IsAuthenticated)

	if err := sessions.Login(ctx, os.Args[1], os.Args[2]); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	snapshot = sessions.Current()
	fmt.Printf("logged in as %s <%s>\n", utils.Value(snapshot.User).Username, utils.Value(snapshot.User).Email)

	list, err := contactList.List(ctx)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}
	for _, contact := range list {
		fmt.Printf("  %d  %-20s %s\n", contact.ID, contact.Name, contact.PhoneNumber)
	}

	sessions.Logout(ctx)
	fmt.Println("logged out")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
